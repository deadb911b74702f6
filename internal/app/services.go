package app

import (
	"context"

	"github.com/obeisser/wledd/internal/config"
	"github.com/obeisser/wledd/internal/db"
	"github.com/obeisser/wledd/internal/eventbus"
	"github.com/obeisser/wledd/internal/script"
	"github.com/obeisser/wledd/internal/storage"
	"github.com/obeisser/wledd/internal/wled"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB         *db.DB
	Attributes *storage.AttributeStore
	Ledger     *storage.Ledger
	Bus        *eventbus.Bus

	// Synchronization engine
	Engine *wled.Engine

	// High-level services
	Script *script.Runtime
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Attributes = storage.NewAttributeStore(database.DB)
	s.Ledger = storage.NewLedger(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	sink := NewHostSink(s.Attributes, s.Bus)

	s.Engine = wled.NewEngine(wled.Options{
		Address:          cfg.WLED.Address,
		TargetSegment:    cfg.WLED.TargetSegment,
		TransitionTime:   cfg.WLED.TransitionTime.Duration(),
		Timeout:          cfg.WLED.Timeout.Duration(),
		RateLimitRPS:     cfg.WLED.RateLimitRPS,
		RetryEnabled:     cfg.WLED.Retry.IsEnabled(),
		RetryMaxAttempts: cfg.WLED.Retry.MaxAttempts,
		RetryDelay:       cfg.WLED.Retry.Delay.Duration(),
		MonitorEnabled:   cfg.WLED.Monitoring.IsEnabled(),
		MonitorInterval:  cfg.WLED.Monitoring.CheckInterval.Duration(),
		PollInterval:     cfg.WLED.PollInterval.Duration(),
	}, sink, newLedgerAudit(s.Ledger))

	if cfg.Script.Enabled {
		s.Script = script.NewRuntime(cfg.Script.Path, s.Engine)
	}

	s.Health = NewHealthService(cfg, s.Engine)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is invoked when a background service fails.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.Script != nil {
		if err := s.Script.LoadScript(); err != nil {
			return err
		}
		s.Script.RegisterHandlers(s.Bus)
		s.Script.Start(ctx)
	}

	go func() {
		if err := s.Engine.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	s.Health.Start(ctx)

	return nil
}

// ClearState clears all persisted attribute state.
func (s *Services) ClearState() error {
	return s.Attributes.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Script != nil {
		s.Script.Close()
	}
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
