package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"imgresize/internal/config"
	"imgresize/internal/event"
	"imgresize/internal/handler"
	"imgresize/internal/journal"
	"imgresize/internal/metrics"
	"imgresize/internal/progress"
	"imgresize/internal/resize"
	"imgresize/internal/storage"
	"imgresize/internal/worker"

	"go.uber.org/zap"
)

const progressInterval = 10 * time.Second

// App wires the upload handler to its triggers
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Client
	handler   *handler.Handler
	journal   journal.Store
	metrics   *metrics.Collector
	processor *worker.Processor
}

// New creates an App backed by the configured object store
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	store, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Secure:    cfg.Storage.Secure,
		Region:    cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return NewWithStore(cfg, store, logger)
}

// NewWithStore creates an App using the given store client
func NewWithStore(cfg *config.Config, store storage.Client, logger *zap.Logger) (*App, error) {
	resizer, err := resize.New(resize.Config{
		Engine:        resize.Engine(cfg.Resize.Engine),
		ConvertBinary: cfg.Resize.ConvertBinary,
		JPEGQuality:   cfg.Resize.JPEGQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resizer: %w", err)
	}

	h := handler.New(store, resizer, handler.Options{
		MaxWidth:     cfg.Resize.MaxWidth,
		MaxHeight:    cfg.Resize.MaxHeight,
		Prefix:       cfg.Resize.Prefix,
		CacheControl: cfg.Resize.CacheControl,
		TempDir:      cfg.Resize.TempDir,
	}, logger)

	// A nil interface keeps the processor from journaling
	var journalStore journal.Store
	if cfg.Journal != "" {
		sqliteStore, err := journal.NewSQLiteStore(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journalStore = sqliteStore
	}

	metricsCollector := metrics.New()

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		handler:   h,
		journal:   journalStore,
		metrics:   metricsCollector,
		processor: worker.NewProcessor(h, journalStore, metricsCollector, logger),
	}, nil
}

// HandleOne processes a single event
func (a *App) HandleOne(ctx context.Context, ev event.UploadEvent) (handler.Result, error) {
	return a.processor.Process(ctx, ev)
}

// Listen processes bucket notifications until ctx is cancelled
func (a *App) Listen(ctx context.Context) error {
	if err := a.cfg.ValidateListen(); err != nil {
		return err
	}

	a.logger.Info("Listening for uploads",
		zap.String("bucket", a.cfg.Listen.Bucket),
		zap.String("prefix", a.cfg.Listen.Prefix),
		zap.String("suffix", a.cfg.Listen.Suffix),
		zap.Int("concurrency", a.cfg.Listen.Concurrency),
		zap.String("engine", a.cfg.Resize.Engine),
	)

	a.startMetrics(ctx)

	var progressDisplay *progress.Display
	if a.cfg.Listen.ShowProgress && progress.IsTerminalSupported() {
		progressDisplay = progress.NewDisplay(a.metrics.GetProgressTracker(), progressInterval, os.Stdout)
		progressDisplay.Start()
		a.logger.Info("Progress display enabled")
	} else if !a.cfg.Listen.ShowProgress {
		a.logger.Info("Progress display disabled (disabled in config)")
	} else {
		a.logger.Info("Progress display disabled (unsupported terminal)")
	}

	tasks := make(chan event.UploadEvent, a.cfg.Listen.Concurrency*2)

	var wg sync.WaitGroup
	pool := worker.NewPool(a.cfg.Listen.Concurrency, a.processor, a.logger)
	pool.Start(ctx, tasks, &wg)

	listener := &NotificationListener{
		client: a.store,
		logger: a.logger,
	}
	err := listener.ListenAndEnqueue(ctx, a.cfg.Listen.Bucket, a.cfg.Listen.Prefix, a.cfg.Listen.Suffix, tasks)

	close(tasks)
	wg.Wait()

	if progressDisplay != nil {
		progressDisplay.Stop()
	}

	if errors.Is(err, context.Canceled) {
		a.logger.Info("Listener stopped")
		return nil
	}
	return err
}

// startMetrics serves /metrics in the background when an address is configured
func (a *App) startMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}

	go func() {
		if err := a.metrics.StartServer(ctx, a.cfg.MetricsAddr); err != nil {
			a.logger.Error("Failed to start metrics server", zap.Error(err))
		}
	}()
}

// Close cleans up resources
func (a *App) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}
