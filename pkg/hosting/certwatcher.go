package hosting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CertificateWatcher watches the certificate cache directory and asks the
// store to reload its certificate map when files change out from under
// the controller, for example when an operator drops renewed PEM files in
// place. Events are debounced to prevent reload storms.
type CertificateWatcher struct {
	watcher  *fsnotify.Watcher
	store    *Store
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// NewCertificateWatcher creates a watcher over the store's certificate
// directory. A non-positive debounce defaults to 500ms.
func NewCertificateWatcher(store *Store, debounce time.Duration, logger *slog.Logger) (*CertificateWatcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &CertificateWatcher{
		watcher:  watcher,
		store:    store,
		logger:   logger.With("component", "hosting.certwatcher"),
		debounce: debounce,
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing filesystem events until the context is
// cancelled. Changes are coalesced over the debounce interval before the
// store reloads.
func (w *CertificateWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("certificate watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
		w.watcher.Close()
	}()

	if err := w.watcher.Add(w.store.cfg.CertificateDir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.store.cfg.CertificateDir, err)
	}

	w.logger.Info("certificate watcher started",
		"dir", w.store.cfg.CertificateDir,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("certificate watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("certificate cache changed", "event", event.Op.String(), "file", event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			changed, err := w.store.ReloadCertificates(ctx)
			if err != nil {
				w.logger.Error("certificate reload failed", "error", err)
				continue
			}
			if changed {
				w.logger.Info("certificate cache reloaded after filesystem change")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
