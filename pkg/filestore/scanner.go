package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// HashUnavailable replaces the content hash of files that could not be read.
const HashUnavailable = "unavailable"

// RawDescriptor is what the scanner knows about a single file.
type RawDescriptor struct {
	Path        string
	Size        int64
	LastUpdated time.Time
	Hash        string
}

type ScanOptions struct {
	// MaxDepth limits the directory levels below root, negative means unlimited.
	MaxDepth int
	// Filters are shell patterns matched against the base name. Empty matches all.
	Filters []string
	// Skip lists file names in root that are never described.
	Skip []string
	// Workers bounds concurrent hashing in Scan.
	Workers int
	Logger  log.LoggerService
}

type Scanner struct {
	fs   afero.Fs
	root string
	opts ScanOptions
	log  log.LoggerService
}

var errStopWalk = errors.New("stop walk")

func NewScanner(fsys afero.Fs, root string, opts ScanOptions) (*Scanner, error) {
	for _, pattern := range opts.Filters {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern '%s': %w", pattern, err)
		}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscardLogger()
	}

	return &Scanner{
		fs:   fsys,
		root: filepath.Clean(root),
		opts: opts,
		log:  logger,
	}, nil
}

// Walk lazily describes every matching file, hashing each one as it is visited.
// Every call walks the tree again.
func (s *Scanner) Walk(ctx context.Context) iter.Seq2[RawDescriptor, error] {
	return func(yield func(RawDescriptor, error) bool) {
		err := s.walk(ctx, func(desc RawDescriptor) bool {
			desc.Hash = s.hash(desc.Path)
			return yield(desc, nil)
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(RawDescriptor{}, err)
		}
	}
}

// Scan walks the tree and hashes the matched files on a bounded worker pool.
// Descriptors are returned sorted by path.
func (s *Scanner) Scan(ctx context.Context) ([]RawDescriptor, error) {
	p := pool.NewWithResults[RawDescriptor]().
		WithContext(ctx).
		WithMaxGoroutines(s.opts.Workers)

	walkErr := s.walk(ctx, func(desc RawDescriptor) bool {
		p.Go(func(ctx context.Context) (RawDescriptor, error) {
			if err := ctx.Err(); err != nil {
				return desc, err
			}
			desc.Hash = s.hash(desc.Path)
			return desc, nil
		})
		return true
	})

	descriptors, err := p.Wait()
	if walkErr != nil {
		return nil, walkErr
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Path < descriptors[j].Path
	})
	return descriptors, nil
}

func (s *Scanner) walk(ctx context.Context, visit func(RawDescriptor) bool) error {
	return afero.Walk(s.fs, s.root, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.root {
				return fmt.Errorf("failed to scan root '%s': %w", s.root, err)
			}
			s.log.Warn("Skipping '%s': %v", path, err)
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}

		if info.IsDir() {
			if rel != "." && s.opts.MaxDepth >= 0 && depth(rel) > s.opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			s.log.Debug("Skipping non-regular file '%s'", path)
			return nil
		}
		if s.skipped(rel) || !s.matches(info.Name()) {
			return nil
		}

		desc := RawDescriptor{
			Path:        path,
			Size:        info.Size(),
			LastUpdated: info.ModTime().UTC(),
		}
		if !visit(desc) {
			return errStopWalk
		}
		return nil
	})
}

func (s *Scanner) skipped(rel string) bool {
	for _, name := range s.opts.Skip {
		if rel == name {
			return true
		}
	}
	return false
}

func (s *Scanner) matches(name string) bool {
	if len(s.opts.Filters) == 0 {
		return true
	}
	for _, pattern := range s.opts.Filters {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) hash(path string) string {
	file, err := s.fs.Open(path)
	if err != nil {
		s.log.Warn("Unable to hash '%s': %v", path, err)
		return HashUnavailable
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		s.log.Warn("Unable to hash '%s': %v", path, err)
		return HashUnavailable
	}
	return hex.EncodeToString(h.Sum(nil))
}

func depth(rel string) int {
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
