package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/redirect"
	"mercator-hq/ganymede/pkg/supervisor"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// Scheduler drives the periodic redirect sweep and the proxy health
// check using cron schedules.
type Scheduler struct {
	cfg       config.MaintenanceConfig
	table     *redirect.Table
	sup       *supervisor.Supervisor
	collector *metrics.Collector
	cron      *cron.Cron
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a maintenance scheduler. sup and collector may
// be nil, in which case the corresponding jobs are skipped.
func NewScheduler(cfg config.MaintenanceConfig, table *redirect.Table, sup *supervisor.Supervisor,
	collector *metrics.Collector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		table:     table,
		sup:       sup,
		collector: collector,
		cron:      cron.New(),
		logger:    logger.With("component", "maintenance"),
	}
}

// Start registers the jobs and begins running them. An empty schedule
// disables the corresponding job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.SweepSchedule != "" && s.table != nil {
		if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.runSweep); err != nil {
			return fmt.Errorf("failed to schedule redirect sweep: %w", err)
		}
	}
	if s.cfg.HealthSchedule != "" && s.sup != nil {
		if _, err := s.cron.AddFunc(s.cfg.HealthSchedule, func() { s.runHealthCheck(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule proxy health check: %w", err)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("maintenance scheduler started",
		"sweep_schedule", s.cfg.SweepSchedule,
		"health_schedule", s.cfg.HealthSchedule,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep reclaims expired redirect entries and refreshes the size
// gauge.
func (s *Scheduler) runSweep() {
	removed := s.table.Sweep()
	s.collector.SetRedirectEntries(s.table.Len())
	if removed > 0 {
		s.logger.Debug("redirect sweep completed", "removed", removed)
	}
}

// runHealthCheck probes the supervised proxy. Failures are logged; the
// supervisor itself decides whether the failure is terminal.
func (s *Scheduler) runHealthCheck(ctx context.Context) {
	if err := s.sup.HealthCheck(ctx); err != nil {
		s.logger.Warn("proxy health check failed",
			"error", err,
			"state", s.sup.State().String(),
		)
	}
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("maintenance scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
