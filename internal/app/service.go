// Package service assembles the ingestion loops, their collaborators and
// the store, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/helio/internal/adapters/remote"
	"github.com/okian/helio/internal/adapters/remote/jsoc"
	"github.com/okian/helio/internal/adapters/remote/swpc"
	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/adapters/worker"
	"github.com/okian/helio/internal/config"
	"github.com/okian/helio/internal/domain/availability"
	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/dedupe"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/retry"
)

// DefaultStopTimeout bounds how long Stop waits for the loops.
const DefaultStopTimeout = 30 * time.Second

// Service owns the store and the background loops.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	configPath string
	logger     logger.Logger
	log        logger.Logger

	// Core components
	store   repository.Store
	oracle  *availability.Oracle
	memo    dedupe.Memo
	imagery *worker.Imagery
	regions *worker.Regions
	workers []worker.Worker

	// State
	runID     string
	startedAt time.Time
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults are used when unset.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithConfigPath enables live reload of the file at path. Only log_level
// is applied without a restart.
func WithConfigPath(path string) Option {
	return func(s *Service) {
		s.configPath = path
	}
}

// WithStore injects an already open store instead of opening the
// configured driver. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		s.cfg = config.New(context.Background())
	}
	return s
}

// Start opens the store, wires the collaborators and launches the enabled
// loops with a context derived from ctx.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.runID = uuid.NewString()
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.log = s.logger.Named("service").With(logger.String("run_id", s.runID))
	cfg := s.cfg

	s.log.Info(ctx, "starting helio service...",
		logger.String("driver", cfg.Storage.Driver),
		logger.String("scale", cfg.Ingest.Scale),
	)

	scale, err := contour.ParseScale(cfg.Ingest.Scale)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	if s.store == nil {
		store, err := repository.Open(ctx, repository.Config{
			Driver:   cfg.Storage.Driver,
			DSN:      cfg.Storage.DSN,
			Database: cfg.Storage.ClickHouseDatabase,
		})
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	httpClient := remote.NewHTTPClient(cfg.Remote.Timeout)
	s.workers = s.workers[:0]

	if cfg.Imagery.Enabled {
		images := jsoc.New(
			jsoc.WithHTTPClient(httpClient),
			jsoc.WithLatestURL(cfg.Remote.JSOCLatestURL),
			jsoc.WithImageBaseURL(cfg.Remote.JSOCImageBaseURL),
		)
		s.oracle = availability.New(images,
			availability.WithTTL(cfg.Oracle.TTL),
			availability.WithRetry(retry.NewFixed(cfg.Oracle.RetryDelay)),
		)
		extractor := contour.NewExtractor(
			contour.WithThresholds(cfg.Ingest.UmbraThreshold, cfg.Ingest.PenumbraThreshold),
			contour.WithScale(scale),
		)
		s.memo = dedupe.NewMemo(dedupe.WithMaxSize(cfg.DedupeSize))
		s.imagery = worker.NewImagery(s.oracle, images, extractor, s.store,
			worker.WithScale(scale),
			worker.WithLookback(cfg.Ingest.Lookback),
			worker.WithIdleInterval(cfg.Ingest.IdleInterval),
			worker.WithEdgePause(cfg.Oracle.TTL),
			worker.WithImageryRetry(retry.NewFixed(cfg.Ingest.RetryDelay)),
			worker.WithMemo(s.memo),
		)
		s.workers = append(s.workers, s.imagery)
	}

	if cfg.Regions.Enabled {
		source := swpc.New(
			swpc.WithHTTPClient(httpClient),
			swpc.WithURL(cfg.Remote.SWPCRegionsURL),
		)
		s.regions = worker.NewRegions(source, s.store,
			worker.WithRegionInterval(cfg.Regions.Interval),
			worker.WithRegionRetry(retry.NewFixed(cfg.Regions.RetryDelay)),
		)
		s.workers = append(s.workers, s.regions)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w worker.Worker) {
			defer s.wg.Done()
			w.Run(runCtx)
		}(w)
	}

	if s.configPath != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := config.Watch(runCtx, s.configPath, s.applyConfig); err != nil {
				s.log.Warn(runCtx, "config watch disabled", logger.Error(err))
			}
		}()
	}

	s.startedAt = time.Now()
	s.started = true
	s.log.Info(ctx, "helio service started",
		logger.Bool("imagery", cfg.Imagery.Enabled),
		logger.Bool("regions", cfg.Regions.Enabled),
		logger.Int("dedupeSize", cfg.DedupeSize),
	)
	return nil
}

// applyConfig applies the settings that can change without a restart.
func (s *Service) applyConfig(cfg *config.Config) {
	ctx := context.Background()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		s.log.Warn(ctx, "ignoring log_level", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		return
	}
	s.log.Info(ctx, "log level applied", logger.String("log_level", cfg.LogLevel))
}

// Stop cancels the loops, waits for them to exit and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
	defer cancel()

	s.log.Info(ctx, "stopping helio service...")

	var errs []error
	for _, w := range s.workers {
		errs = append(errs, w.Shutdown(ctx))
	}
	s.cancel()
	s.wg.Wait()

	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn(ctx, "unclean stop", logger.Error(err))
	}

	s.started = false
	s.log.Info(ctx, "helio service stopped")
}

// Store returns the open store, or nil before Start.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Range returns stored observations between start and end inclusive.
func (s *Service) Range(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	return store.Range(ctx, start, end)
}

// Latest returns the newest stored observation.
func (s *Service) Latest(ctx context.Context) (model.Observation, bool, error) {
	store, err := s.readStore()
	if err != nil {
		return model.Observation{}, false, err
	}
	return store.Latest(ctx)
}

// RangeByDate returns region reports observed between the dates of start and end.
func (s *Service) RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	return store.RangeByDate(ctx, start, end)
}

// ByRegion returns every report of one region.
func (s *Service) ByRegion(ctx context.Context, region int) ([]model.Region, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	return store.ByRegion(ctx, region)
}

func (s *Service) readStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
		"scale":   s.cfg.Ingest.Scale,
		"driver":  s.cfg.Storage.Driver,
	}
	if !s.started {
		return stats
	}

	stats["runID"] = s.runID
	stats["uptime"] = time.Since(s.startedAt).Truncate(time.Second).String()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if st, err := s.store.Stats(ctx); err == nil {
		stats["store"] = st
	} else {
		s.log.Warn(ctx, "store stats unavailable", logger.Error(err))
	}
	if s.imagery != nil {
		stats["imagery"] = s.imagery.Stats()
		stats["memoSize"] = s.memo.Size()
	}
	if s.regions != nil {
		stats["regions"] = s.regions.Stats()
	}
	return stats
}
