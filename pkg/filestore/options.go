package filestore

import (
	"fmt"

	"github.com/mwantia/gofilestore/pkg/db/store"
	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/spf13/afero"
)

type FileStoreOptions struct {
	ReadOnly         bool
	MaxDepth         int
	TrackFiles       []string
	SidecarName      string
	ContentSizeLimit int64
	IncludeOrphans   bool
	Workers          int

	Fs          afero.Fs
	RecordStore store.RecordStore
	Logger      log.LoggerService
}

type FileStoreOption func(*FileStoreOptions) error

func newDefaultFileStoreOptions() *FileStoreOptions {
	return &FileStoreOptions{
		ReadOnly:         true,
		MaxDepth:         -1,
		SidecarName:      DefaultSidecarName,
		ContentSizeLimit: 1 << 20,
		Workers:          4,
	}
}

func WithReadOnly(readOnly bool) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.ReadOnly = readOnly
		return nil
	}
}

// WithMaxDepth limits the directory levels scanned below the root. Negative is unlimited.
func WithMaxDepth(maxDepth int) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.MaxDepth = maxDepth
		return nil
	}
}

func WithTrackFiles(patterns ...string) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.TrackFiles = append([]string(nil), patterns...)
		return nil
	}
}

func WithSidecarName(name string) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		if name == "" {
			return fmt.Errorf("side-car name must not be empty")
		}
		opts.SidecarName = name
		return nil
	}
}

// WithContentSizeLimit sets the largest file returned as contents. Zero disables contents.
func WithContentSizeLimit(limit int64) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		if limit < 0 {
			return fmt.Errorf("content size limit must not be negative, got %d", limit)
		}
		opts.ContentSizeLimit = limit
		return nil
	}
}

func WithIncludeOrphans(include bool) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.IncludeOrphans = include
		return nil
	}
}

func WithWorkers(workers int) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		if workers < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", workers)
		}
		opts.Workers = workers
		return nil
	}
}

func WithFs(fsys afero.Fs) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.Fs = fsys
		return nil
	}
}

func WithRecordStore(records store.RecordStore) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.RecordStore = records
		return nil
	}
}

func WithLogger(logger log.LoggerService) FileStoreOption {
	return func(opts *FileStoreOptions) error {
		opts.Logger = logger
		return nil
	}
}
