package nginx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrNotRunning is returned by operations that require a live proxy
// process when none is running.
var ErrNotRunning = errors.New("nginx: process is not running")

// ControllerConfig configures the nginx process controller.
type ControllerConfig struct {
	// Binary is the nginx executable path.
	Binary string

	// CacheDir is the on-disk proxy cache scanned during purges; empty
	// disables purging.
	CacheDir string

	// HealthURL is probed by Healthy, normally the /healthz endpoint of
	// the generated status server.
	HealthURL string

	// StopTimeout bounds graceful shutdown before escalating to SIGKILL.
	StopTimeout time.Duration
}

// Controller drives one external nginx process: foreground launch,
// configuration validation, SIGHUP reload, graceful stop, liveness and
// health checks, and disk-cache purges.
type Controller struct {
	cfg    ControllerConfig
	logger *slog.Logger
	client *http.Client

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// NewController creates a controller. The process is not started.
func NewController(cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.Binary == "" {
		cfg.Binary = "nginx"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		logger: logger.With("component", "nginx.controller"),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Name identifies the controlled proxy in logs and errors.
func (c *Controller) Name() string { return "nginx" }

// Start launches the proxy in the foreground with the given
// configuration file. The returned error covers launch only; runtime
// exit is reported on Done.
func (c *Controller) Start(ctx context.Context, configPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("nginx: process already running with pid %d", c.cmd.Process.Pid)
	}

	cmd := exec.Command(c.cfg.Binary, "-c", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("nginx: failed to start %q: %w", c.cfg.Binary, err)
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.cmd = nil
		c.mu.Unlock()
		done <- err
	}()

	c.cmd = cmd
	c.done = done
	c.logger.Info("proxy process started", "pid", cmd.Process.Pid, "config", configPath)
	return nil
}

// Validate checks a candidate configuration with "nginx -t" without
// touching the running process. The combined tool output is embedded in
// the returned error.
func (c *Controller) Validate(ctx context.Context, configPath string) error {
	cmd := exec.CommandContext(ctx, c.cfg.Binary, "-t", "-c", configPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("nginx: configuration check failed: %w: %s", err, bytes.TrimSpace(out.Bytes()))
	}
	return nil
}

// Reload signals the running process to re-read its configuration
// without dropping in-flight requests.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil {
		return ErrNotRunning
	}
	if err := cmd.Process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("nginx: reload signal failed: %w", err)
	}
	c.logger.Info("proxy reload signalled", "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the process. With graceful set it sends SIGQUIT and
// waits up to StopTimeout for in-flight requests to drain before
// escalating to SIGKILL; otherwise it kills immediately.
func (c *Controller) Stop(ctx context.Context, graceful bool) error {
	c.mu.Lock()
	cmd := c.cmd
	done := c.done
	c.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if graceful {
		if err := cmd.Process.Signal(syscall.SIGQUIT); err != nil {
			return fmt.Errorf("nginx: quit signal failed: %w", err)
		}
		select {
		case <-done:
			c.logger.Info("proxy stopped gracefully", "pid", cmd.Process.Pid)
			return nil
		case <-time.After(c.cfg.StopTimeout):
			c.logger.Warn("graceful stop timed out, killing", "pid", cmd.Process.Pid)
		case <-ctx.Done():
			c.logger.Warn("stop cancelled, killing", "pid", cmd.Process.Pid)
		}
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("nginx: kill failed: %w", err)
	}
	<-done
	return nil
}

// Alive reports whether the process is currently running.
func (c *Controller) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// Done reports the process exit: the channel delivers the exit error
// (nil on clean exit) once the process started by Start terminates.
func (c *Controller) Done() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Healthy verifies the process is alive and, when HealthURL is set,
// that the status server answers with a success status.
func (c *Controller) Healthy(ctx context.Context) error {
	if !c.Alive() {
		return ErrNotRunning
	}
	if c.cfg.HealthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("nginx: health probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("nginx: health probe returned status %d", resp.StatusCode)
	}
	return nil
}
