package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/gofilestore/internal/config"
	"github.com/mwantia/gofilestore/pkg/db/store"
	"github.com/mwantia/gofilestore/pkg/filestore"
	"github.com/mwantia/gofilestore/pkg/log"
	gormlogger "gorm.io/gorm/logger"
)

type FileStoreAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg    *config.BaseConfig
	sc     *container.ServiceContainer
	log    log.LoggerService
	store  *filestore.FileStore
	cancel context.CancelFunc
}

func NewAgent(cfg *config.BaseConfig) (*FileStoreAgent, error) {
	logger, err := log.NewLoggerService("gofilestore", cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return NewAgentWithLogger(cfg, logger)
}

// NewAgentWithLogger is used by frontends that own stdout, such as the MCP server.
func NewAgentWithLogger(cfg *config.BaseConfig, logger log.LoggerService) (*FileStoreAgent, error) {
	fs, err := NewFileStore(cfg, logger.Named("filestore"))
	if err != nil {
		return nil, err
	}

	return &FileStoreAgent{
		cfg:   cfg,
		sc:    container.NewServiceContainer(),
		log:   logger,
		store: fs,
	}, nil
}

// NewFileStore maps the configuration onto store options.
func NewFileStore(cfg *config.BaseConfig, logger log.LoggerService) (*filestore.FileStore, error) {
	var records store.RecordStore
	switch cfg.Store.Type {
	case "", "memory":
		records = store.NewMemoryStore()
	case "sqlite":
		sqlite, err := store.NewSQLiteStore(store.SQLiteConfig{
			Path:     cfg.Store.SQLite.Path,
			LogLevel: gormLogLevel(cfg.Log.Level),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite record store: %w", err)
		}
		records = sqlite
	default:
		return nil, fmt.Errorf("unknown store type '%s'", cfg.Store.Type)
	}

	return filestore.New(cfg.Root,
		filestore.WithReadOnly(cfg.ReadOnly),
		filestore.WithMaxDepth(cfg.MaxDepth),
		filestore.WithTrackFiles(cfg.TrackFiles...),
		filestore.WithSidecarName(cfg.SidecarName),
		filestore.WithContentSizeLimit(cfg.ContentSizeLimit),
		filestore.WithIncludeOrphans(cfg.IncludeOrphans),
		filestore.WithWorkers(cfg.Workers),
		filestore.WithRecordStore(records),
		filestore.WithLogger(logger))
}

// gormLogLevel keeps SQL tracing out of the log unless debugging.
func gormLogLevel(level string) gormlogger.LogLevel {
	parsed, err := log.Parse(level)
	if err != nil {
		return gormlogger.Silent
	}
	switch parsed {
	case log.Debug:
		return gormlogger.Info
	case log.Warn:
		return gormlogger.Warn
	case log.Error, log.Fatal:
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

func (fsa *FileStoreAgent) Store() *filestore.FileStore {
	return fsa.store
}

func (fsa *FileStoreAgent) setupServices() error {
	errs := container.Errors{}

	fsa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](fsa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(fsa.log)))

	fsa.log.Debug("Registering 'FileStore'...")
	errs.Add(container.Register[filestore.FileStore](fsa.sc,
		container.WithInstance(fsa.store)))

	return errs.Errors()
}

// Start registers the services, connects the store and keeps it refreshed
// until ctx is done or Shutdown is called.
func (fsa *FileStoreAgent) Start(ctx context.Context) error {
	fsa.mutex.Lock()
	defer fsa.mutex.Unlock()

	if fsa.cancel != nil {
		return fmt.Errorf("agent already started")
	}

	if err := fsa.setupServices(); err != nil {
		return err
	}

	if err := fsa.store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect '%s': %w", fsa.cfg.Root, err)
	}

	ctx, fsa.cancel = context.WithCancel(ctx)

	fsa.wait.Add(1)
	go fsa.refresh(ctx)

	return nil
}

func (fsa *FileStoreAgent) refresh(ctx context.Context) {
	defer fsa.wait.Done()

	logger, err := log.Resolve(ctx, fsa.sc, "refresh")
	if err != nil {
		logger = fsa.log.Named("refresh")
	}

	interval := fsa.cfg.Agent.RefreshIntervalDuration()
	logger.Debug("Refreshing '%s' every %s", fsa.store.Root(), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fsa.store.Connect(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("Failed to refresh '%s': %v", fsa.store.Root(), err)
			}
		}
	}
}

// Shutdown stops the refresh loop and releases every service.
func (fsa *FileStoreAgent) Shutdown(ctx context.Context) error {
	fsa.mutex.Lock()
	defer fsa.mutex.Unlock()

	if fsa.cancel == nil {
		return nil
	}
	fsa.cancel()
	fsa.cancel = nil

	fsa.wait.Wait()

	errs := container.Errors{}
	if err := fsa.sc.Cleanup(ctx); err != nil {
		errs.Add(fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	if err := fsa.store.Close(); err != nil {
		errs.Add(err)
	}

	return errs.Errors()
}

// Serve runs the agent until an interrupt is received.
func (fsa *FileStoreAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	if err := fsa.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	fsa.log.Info("Shutting down...")

	shutdown, cancel := context.WithTimeout(context.Background(), fsa.cfg.Agent.ShutdownTimeoutDuration())
	defer cancel()

	return fsa.Shutdown(shutdown)
}
