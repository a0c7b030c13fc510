package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckReadinessAllPassing(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("proxy", func(context.Context) error { return nil })
	c.RegisterCheck("store", func(context.Context) error { return nil })

	status := c.CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("Status = %q, want ready", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("Checks = %d entries, want 2", len(status.Checks))
	}
	for name, result := range status.Checks {
		if result.Status != "ok" {
			t.Errorf("check %q status = %q, want ok", name, result.Status)
		}
	}
}

func TestCheckReadinessDegraded(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("proxy", func(context.Context) error {
		return errors.New("proxy process not running")
	})
	c.RegisterCheck("store", func(context.Context) error { return nil })

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", status.Status)
	}
	if got := status.Checks["proxy"].Message; got != "proxy process not running" {
		t.Errorf("proxy message = %q", got)
	}
}

func TestCheckReadinessNoChecks(t *testing.T) {
	status := New(0).CheckReadiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("Status = %q with no checks, want ready", status.Status)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.CheckReadiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("Status = %q for timed-out check, want degraded", status.Status)
	}
}

func TestUnregisterCheck(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("proxy", func(context.Context) error { return errors.New("down") })
	c.UnregisterCheck("proxy")

	if n := c.CheckCount(); n != 0 {
		t.Errorf("CheckCount() = %d, want 0", n)
	}
	if status := c.CheckReadiness(context.Background()); status.Status != "ready" {
		t.Errorf("Status = %q after unregister, want ready", status.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("proxy", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	c.RegisterCheck("proxy", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != 503 {
		t.Errorf("status = %d with failing check, want 503", rec.Code)
	}
}
