package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// ProcessController is the capability set the supervisor needs from the
// external proxy binary. pkg/nginx provides the production
// implementation.
type ProcessController interface {
	// Name identifies the proxy in logs and errors.
	Name() string

	// Start launches the proxy in the foreground with the given
	// configuration file.
	Start(ctx context.Context, configPath string) error

	// Validate checks a candidate configuration without touching the
	// running process.
	Validate(ctx context.Context, configPath string) error

	// Reload signals the running proxy to re-read its configuration.
	Reload(ctx context.Context) error

	// Stop terminates the proxy, draining in-flight requests when
	// graceful is set.
	Stop(ctx context.Context, graceful bool) error

	// Alive reports whether the process is currently running.
	Alive() bool

	// Healthy verifies the proxy is serving.
	Healthy(ctx context.Context) error
}

// State is the supervisor's lifecycle state.
type State int

const (
	// StateStopped means no proxy process exists.
	StateStopped State = iota

	// StateStarting means a launch attempt is in progress.
	StateStarting

	// StateRunning means the proxy is up on the current artifact.
	StateRunning

	// StateReloading means a new artifact is being applied.
	StateReloading

	// StateFailed is a sink state after an unrecoverable launch or
	// rollback failure. Only Restart leaves it.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReloading:
		return "reloading"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures a Supervisor.
type Config struct {
	// ArtifactDir holds the live artifact and its candidate and
	// rollback siblings.
	ArtifactDir string

	// ArtifactName is the live artifact file name (default nginx.conf).
	// The candidate carries a ".next" suffix, the rollback copy ".prev".
	ArtifactName string

	// StartAttempts is the launch retry budget (default 3).
	StartAttempts int

	// RetryBackoff is the delay before the first retry; it doubles per
	// attempt (default 1s).
	RetryBackoff time.Duration

	// HealthTimeout bounds how long a launch or reload may take to
	// become healthy (default 10s).
	HealthTimeout time.Duration

	// HealthInterval is the probe spacing while waiting (default 250ms).
	HealthInterval time.Duration
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ArtifactName == "" {
		c.ArtifactName = "nginx.conf"
	}
	if c.StartAttempts <= 0 {
		c.StartAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 10 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 250 * time.Millisecond
	}
}

// Supervisor drives the proxy process through artifact changes. It
// implements the store's ConfigApplier: every Apply call either brings
// the proxy up on the artifact or leaves it serving the previous one.
type Supervisor struct {
	cfg       Config
	proc      ProcessController
	logger    *slog.Logger
	collector *metrics.Collector

	mu    sync.Mutex
	state State
}

// New creates a supervisor in the stopped state. collector may be nil.
func New(cfg Config, proc ProcessController, logger *slog.Logger, collector *metrics.Collector) *Supervisor {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:       cfg,
		proc:      proc,
		logger:    logger.With("component", "supervisor", "proxy", proc.Name()),
		collector: collector,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConfigPath returns the live artifact path.
func (s *Supervisor) ConfigPath() string {
	return filepath.Join(s.cfg.ArtifactDir, s.cfg.ArtifactName)
}

func (s *Supervisor) nextPath() string { return s.ConfigPath() + ".next" }
func (s *Supervisor) prevPath() string { return s.ConfigPath() + ".prev" }

// Apply implements hosting.ConfigApplier. A stopped supervisor is
// started on the artifact; a running one is reloaded with
// validate-then-promote and a single rollback on failure.
func (s *Supervisor) Apply(ctx context.Context, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateFailed:
		return ErrFailed
	case StateStopped:
		return s.startLocked(ctx, artifact)
	case StateRunning:
		return s.reloadLocked(ctx, artifact)
	default:
		return fmt.Errorf("cannot apply artifact in state %s", s.state)
	}
}

// Stop gracefully terminates the proxy and returns the supervisor to
// the stopped state.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}
	if err := s.proc.Stop(ctx, true); err != nil {
		return err
	}
	s.setStateLocked(StateStopped)
	return nil
}

// Restart leaves the failed (or stopped) state by relaunching the proxy
// on the current live artifact.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to read live artifact: %w", err)
	}
	if s.state == StateRunning || s.state == StateFailed {
		if s.proc.Alive() {
			if err := s.proc.Stop(ctx, true); err != nil {
				return err
			}
		}
		s.setStateLocked(StateStopped)
	}
	return s.startLocked(ctx, artifact)
}

// HealthCheck probes the running proxy. A running supervisor whose
// process has died transitions to failed.
func (s *Supervisor) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStopped:
		return nil
	case StateFailed:
		return ErrFailed
	}
	err := s.proc.Healthy(ctx)
	if err != nil && !s.proc.Alive() {
		s.logger.Error("proxy process died", "error", err)
		s.setStateLocked(StateFailed)
	}
	return err
}

// startLocked writes, validates and promotes the artifact, then
// launches the proxy within the retry budget. Caller holds s.mu.
func (s *Supervisor) startLocked(ctx context.Context, artifact []byte) error {
	s.setStateLocked(StateStarting)
	began := time.Now()

	if err := s.stageArtifactLocked(artifact); err != nil {
		s.setStateLocked(StateStopped)
		return err
	}
	if err := s.proc.Validate(ctx, s.nextPath()); err != nil {
		s.setStateLocked(StateStopped)
		return &ConfigInvalidError{Cause: err}
	}
	if err := s.promoteLocked(); err != nil {
		s.setStateLocked(StateStopped)
		return err
	}

	var lastErr error
	backoff := s.cfg.RetryBackoff
	for attempt := 1; attempt <= s.cfg.StartAttempts; attempt++ {
		if attempt > 1 {
			s.logger.Warn("retrying proxy launch", "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				s.setStateLocked(StateStopped)
				return ctx.Err()
			}
			backoff *= 2
		}

		if err := s.proc.Start(ctx, s.ConfigPath()); err != nil {
			lastErr = err
			continue
		}
		if err := s.awaitHealthy(ctx); err != nil {
			lastErr = err
			_ = s.proc.Stop(ctx, false)
			continue
		}

		s.setStateLocked(StateRunning)
		s.recordReload("success", began)
		s.logger.Info("proxy started", "attempt", attempt)
		return nil
	}

	s.setStateLocked(StateFailed)
	s.recordReload("error", began)
	return &StartupError{Attempts: s.cfg.StartAttempts, Cause: lastErr}
}

// reloadLocked applies a new artifact to the running proxy with a
// single rollback on failure. Caller holds s.mu.
func (s *Supervisor) reloadLocked(ctx context.Context, artifact []byte) error {
	s.setStateLocked(StateReloading)
	began := time.Now()

	if err := s.stageArtifactLocked(artifact); err != nil {
		s.setStateLocked(StateRunning)
		return err
	}
	if err := s.proc.Validate(ctx, s.nextPath()); err != nil {
		s.setStateLocked(StateRunning)
		s.recordReload("invalid", began)
		return &ConfigInvalidError{Cause: err}
	}

	if err := os.Rename(s.ConfigPath(), s.prevPath()); err != nil {
		s.setStateLocked(StateRunning)
		return fmt.Errorf("failed to preserve previous artifact: %w", err)
	}
	if err := s.promoteLocked(); err != nil {
		_ = os.Rename(s.prevPath(), s.ConfigPath())
		s.setStateLocked(StateRunning)
		return err
	}

	err := s.proc.Reload(ctx)
	if err == nil {
		err = s.awaitHealthy(ctx)
	}
	if err == nil {
		s.setStateLocked(StateRunning)
		s.recordReload("success", began)
		s.logger.Info("proxy reloaded")
		return nil
	}

	// The promoted artifact did not take effect. Restore the previous
	// one and reload once more; keep the bad artifact as .next for
	// inspection.
	s.logger.Error("reload failed, rolling back", "error", err)
	if rerr := s.rollbackLocked(ctx); rerr != nil {
		s.setStateLocked(StateFailed)
		s.recordReload("error", began)
		return &ReloadError{RolledBack: false, Cause: fmt.Errorf("%v (rollback failed: %v)", err, rerr)}
	}

	s.setStateLocked(StateRunning)
	s.recordReload("rollback", began)
	return &ReloadError{RolledBack: true, Cause: err}
}

func (s *Supervisor) rollbackLocked(ctx context.Context) error {
	if err := os.Rename(s.ConfigPath(), s.nextPath()); err != nil {
		return fmt.Errorf("failed to set aside bad artifact: %w", err)
	}
	if err := os.Rename(s.prevPath(), s.ConfigPath()); err != nil {
		return fmt.Errorf("failed to restore previous artifact: %w", err)
	}
	if err := s.proc.Reload(ctx); err != nil {
		return err
	}
	return s.awaitHealthy(ctx)
}

// stageArtifactLocked writes the candidate next to the live artifact.
func (s *Supervisor) stageArtifactLocked(artifact []byte) error {
	if err := os.MkdirAll(s.cfg.ArtifactDir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(s.nextPath(), artifact, 0o644); err != nil {
		return fmt.Errorf("failed to stage artifact: %w", err)
	}
	return nil
}

// promoteLocked atomically makes the candidate the live artifact.
func (s *Supervisor) promoteLocked() error {
	if err := os.Rename(s.nextPath(), s.ConfigPath()); err != nil {
		return fmt.Errorf("failed to promote artifact: %w", err)
	}
	return nil
}

// awaitHealthy polls the proxy until it answers or the health budget
// runs out.
func (s *Supervisor) awaitHealthy(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.HealthTimeout)
	var lastErr error
	for {
		err := s.proc.Healthy(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("proxy did not become healthy within %s: %w", s.cfg.HealthTimeout, lastErr)
		}
		select {
		case <-time.After(s.cfg.HealthInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug("state transition", "from", s.state.String(), "to", next.String())
	s.state = next
}

func (s *Supervisor) recordReload(outcome string, began time.Time) {
	if s.collector == nil {
		return
	}
	s.collector.RecordReload(outcome, time.Since(began))
}
