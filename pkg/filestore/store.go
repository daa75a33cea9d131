package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mwantia/gofilestore/pkg/db/store"
	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/mwantia/gofilestore/pkg/query"
	"github.com/spf13/afero"
)

// FileStore exposes a directory tree as a collection of records.
type FileStore struct {
	mutex   sync.RWMutex
	writeMu sync.Mutex

	root    string
	fsys    afero.Fs
	opts    *FileStoreOptions
	scanner *Scanner
	sidecar *Sidecar
	records store.RecordStore
	log     log.LoggerService

	connected bool
	state     *StoreState
	stats     ReconcileStats
}

func New(root string, options ...FileStoreOption) (*FileStore, error) {
	opts := newDefaultFileStoreOptions()
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDiscardLogger()
	}
	if opts.RecordStore == nil {
		opts.RecordStore = store.NewMemoryStore()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root '%s': %w", root, err)
	}

	scanner, err := NewScanner(opts.Fs, abs, ScanOptions{
		MaxDepth: opts.MaxDepth,
		Filters:  opts.TrackFiles,
		Skip:     []string{opts.SidecarName, opts.SidecarName + ".wip"},
		Workers:  opts.Workers,
		Logger:   opts.Logger.Named("scanner"),
	})
	if err != nil {
		return nil, err
	}

	return &FileStore{
		root:    abs,
		fsys:    opts.Fs,
		opts:    opts,
		scanner: scanner,
		sidecar: NewSidecar(opts.Fs, abs, opts.SidecarName),
		records: opts.RecordStore,
		log:     opts.Logger,
	}, nil
}

func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) ReadOnly() bool {
	return s.opts.ReadOnly
}

func (s *FileStore) Sidecar() *Sidecar {
	return s.sidecar
}

func (s *FileStore) Connected() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.connected
}

// Connect scans the root and reconciles it with the side-car. The new state
// is only published when every step succeeded.
func (s *FileStore) Connect(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutex.RLock()
	previous := s.state
	s.mutex.RUnlock()

	start := time.Now()
	s.log.Debug("Scanning '%s'...", s.root)

	descriptors, err := s.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan '%s': %w", s.root, err)
	}

	persisted, err := s.sidecar.Load()
	if err != nil {
		return fmt.Errorf("failed to load side-car: %w", err)
	}

	state, stats, err := Reconcile(s.root, descriptors, persisted, previous)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.opts.ReadOnly {
		exists, err := s.sidecar.Exists()
		if err != nil {
			return fmt.Errorf("failed to check side-car: %w", err)
		}
		if !exists {
			if err := s.sidecar.Save(state.Entries()); err != nil {
				return fmt.Errorf("failed to create side-car: %w", err)
			}
		}
	}

	if err := s.records.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect record store: %w", err)
	}
	if err := s.records.Replace(ctx, documents(state.Sorted())); err != nil {
		return fmt.Errorf("failed to populate record store: %w", err)
	}

	s.mutex.Lock()
	s.state = state
	s.stats = stats
	s.connected = true
	s.mutex.Unlock()

	s.log.Info("Connected '%s': %d record(s), %d added, %d modified, %d removed, %d orphaned (%s)",
		s.root, stats.Total, stats.Added, stats.Modified, stats.Removed, stats.Orphaned, time.Since(start).Round(time.Millisecond))
	return nil
}

// Close disconnects the store. The last state is kept so that a later
// Connect preserves record ids.
func (s *FileStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false

	if err := s.records.Close(); err != nil {
		return fmt.Errorf("failed to close record store: %w", err)
	}
	return nil
}

func (s *FileStore) current() (*StoreState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.connected {
		return nil, ErrNotConnected
	}
	return s.state, nil
}

// State returns the currently published state.
func (s *FileStore) State() (*StoreState, error) {
	return s.current()
}

// Stats returns the result of the last successful reconcile.
func (s *FileStore) Stats() (ReconcileStats, error) {
	if _, err := s.current(); err != nil {
		return ReconcileStats{}, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.stats, nil
}

// Orphans lists the records whose file was not found by the last scan.
func (s *FileStore) Orphans() ([]*FileRecord, error) {
	state, err := s.current()
	if err != nil {
		return nil, err
	}

	var orphans []*FileRecord
	for _, record := range state.Sorted() {
		if record.Orphan {
			orphans = append(orphans, record)
		}
	}
	return orphans, nil
}

// visible restricts filter to live records unless orphans are included.
func (s *FileStore) visible(filter query.Filter) query.Filter {
	if s.opts.IncludeOrphans {
		return filter
	}
	if _, exists := filter[FieldOrphan]; exists {
		return query.Filter{"$and": []any{filter, query.Filter{FieldOrphan: false}}}
	}

	visible := make(query.Filter, len(filter)+1)
	for key, value := range filter {
		visible[key] = value
	}
	visible[FieldOrphan] = false
	return visible
}

// Query resolves q against the record store. Contents are attached when the
// projection is empty or names them.
func (s *FileStore) Query(ctx context.Context, q *query.Query) ([]query.Document, error) {
	state, err := s.current()
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = &query.Query{}
	}

	docs, err := s.records.Find(ctx, &query.Query{
		Filter: s.visible(q.Filter),
		Sort:   q.Sort,
		Skip:   q.Skip,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	if s.opts.ContentSizeLimit > 0 && query.Includes(q.Properties, FieldContents) {
		if err := s.attachContents(ctx, state, docs); err != nil {
			return nil, fmt.Errorf("failed to read contents: %w", err)
		}
	}

	if len(q.Properties) == 0 {
		return docs, nil
	}
	for i, doc := range docs {
		docs[i] = query.Project(doc, q.Properties)
	}
	return docs, nil
}

// QueryOne returns the first matching document or nil.
func (s *FileStore) QueryOne(ctx context.Context, filter query.Filter, properties ...string) (query.Document, error) {
	docs, err := s.Query(ctx, &query.Query{
		Filter:     filter,
		Properties: properties,
		Limit:      1,
	})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (s *FileStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	if _, err := s.current(); err != nil {
		return 0, err
	}
	return s.records.Count(ctx, s.visible(filter))
}

// Distinct returns the unique values of field among matching records.
func (s *FileStore) Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}

	docs, err := s.records.Find(ctx, &query.Query{Filter: s.visible(filter)})
	if err != nil {
		return nil, err
	}
	return query.Distinct(docs, field), nil
}

// GroupBy partitions matching records by the values of keys.
func (s *FileStore) GroupBy(ctx context.Context, keys []string, filter query.Filter) ([]query.Group, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}

	docs, err := s.records.Find(ctx, &query.Query{Filter: s.visible(filter)})
	if err != nil {
		return nil, err
	}
	return query.GroupBy(docs, keys), nil
}

// LastUpdated is the newest modification time among live records.
func (s *FileStore) LastUpdated() (time.Time, error) {
	state, err := s.current()
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	for _, record := range state.Records {
		if !record.Orphan && record.LastUpdated.After(latest) {
			latest = record.LastUpdated
		}
	}
	return latest, nil
}

// NewerIn returns the file_ids whose live record in other is newer than in
// this store, or missing here.
func (s *FileStore) NewerIn(ctx context.Context, other *FileStore) ([]string, error) {
	state, err := s.current()
	if err != nil {
		return nil, err
	}
	target, err := other.current()
	if err != nil {
		return nil, fmt.Errorf("target store: %w", err)
	}

	var newer []string
	for id, record := range target.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if record.Orphan {
			continue
		}
		mine, exists := state.Get(id)
		if !exists || mine.Orphan || record.LastUpdated.After(mine.LastUpdated) {
			newer = append(newer, id)
		}
	}
	sort.Strings(newer)
	return newer, nil
}

func documents(records []*FileRecord) []query.Document {
	docs := make([]query.Document, len(records))
	for i, record := range records {
		docs[i] = record.Document()
	}
	return docs
}
