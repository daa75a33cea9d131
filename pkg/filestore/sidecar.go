package filestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const DefaultSidecarName = "FileStore.json"

// MetadataEntry is the persisted user metadata of one file.
type MetadataEntry struct {
	FileID string
	// Path is relative to the root and slash separated when written by this store.
	Path   string
	Fields query.Document
}

// Sidecar reads and writes the metadata file kept inside the root.
type Sidecar struct {
	fs   afero.Fs
	root string
	name string
}

func NewSidecar(fsys afero.Fs, root, name string) *Sidecar {
	if name == "" {
		name = DefaultSidecarName
	}
	return &Sidecar{
		fs:   fsys,
		root: filepath.Clean(root),
		name: name,
	}
}

func (s *Sidecar) Name() string {
	return s.name
}

func (s *Sidecar) Path() string {
	return filepath.Join(s.root, s.name)
}

func (s *Sidecar) tempPath() string {
	return s.Path() + ".wip"
}

func (s *Sidecar) Exists() (bool, error) {
	return afero.Exists(s.fs, s.Path())
}

func (s *Sidecar) isYAML() bool {
	switch strings.ToLower(filepath.Ext(s.name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load returns the persisted entries by file_id. A missing file yields an empty mapping.
func (s *Sidecar) Load() (map[string]MetadataEntry, error) {
	entries := make(map[string]MetadataEntry)

	data, err := afero.ReadFile(s.fs, s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read side-car '%s': %w", s.Path(), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}

	var objects []map[string]any
	if s.isYAML() {
		err = yaml.Unmarshal(data, &objects)
	} else {
		err = json.Unmarshal(data, &objects)
	}
	if err != nil {
		return nil, &ConsistencyError{
			Reason: fmt.Sprintf("malformed side-car '%s': %v", s.Path(), err),
		}
	}

	for i, object := range objects {
		entry, err := s.decodeEntry(object)
		if err != nil {
			return nil, &ConsistencyError{
				Reason: fmt.Sprintf("side-car entry %d: %v", i, err),
			}
		}
		if existing, exists := entries[entry.FileID]; exists {
			return nil, &ConsistencyError{
				Reason: "duplicate side-car entry",
				FileID: entry.FileID,
				Paths:  []string{existing.Path, entry.Path},
			}
		}
		entries[entry.FileID] = entry
	}
	return entries, nil
}

func (s *Sidecar) decodeEntry(object map[string]any) (MetadataEntry, error) {
	if object == nil {
		return MetadataEntry{}, errors.New("entry is not an object")
	}

	fileID, ok := object[FieldFileID].(string)
	if !ok || fileID == "" {
		return MetadataEntry{}, errors.New("missing file_id")
	}

	var path string
	if raw, exists := object[FieldPath]; exists && raw != nil {
		if path, ok = raw.(string); !ok {
			return MetadataEntry{}, fmt.Errorf("path of '%s' is not a string", fileID)
		}
	}
	if path != "" && filepath.IsAbs(filepath.FromSlash(path)) {
		if rel, err := RelativePath(s.root, path); err == nil {
			path = rel
		}
	}

	fields := make(query.Document, len(object))
	for key, value := range object {
		if key == FieldFileID || key == FieldPath {
			continue
		}
		fields[key] = value
	}

	return MetadataEntry{
		FileID: fileID,
		Path:   path,
		Fields: fields,
	}, nil
}

// Save replaces the side-car with exactly entries. The content is written to
// a temporary file first and renamed over the side-car.
func (s *Sidecar) Save(entries map[string]MetadataEntry) error {
	list := make([]MetadataEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Path != list[j].Path {
			return list[i].Path < list[j].Path
		}
		return list[i].FileID < list[j].FileID
	})

	objects := make([]map[string]any, len(list))
	for i, entry := range list {
		object := make(map[string]any, len(entry.Fields)+2)
		for key, value := range entry.Fields {
			object[key] = value
		}
		object[FieldFileID] = entry.FileID
		object[FieldPath] = entry.Path
		objects[i] = object
	}

	var data []byte
	var err error
	if s.isYAML() {
		data, err = yaml.Marshal(objects)
	} else {
		data, err = json.MarshalIndent(objects, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode side-car: %w", err)
	}

	temp := s.tempPath()
	if err := afero.WriteFile(s.fs, temp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write side-car '%s': %w", temp, err)
	}
	if err := s.fs.Rename(temp, s.Path()); err != nil {
		_ = s.fs.Remove(temp)
		return fmt.Errorf("failed to replace side-car '%s': %w", s.Path(), err)
	}
	return nil
}
