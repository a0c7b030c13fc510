package cli

import (
	"errors"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("server.listen_address", "missing required field")

	want := "config error in server.listen_address: missing required field"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := NewConfigError("", "failed to load config")

	want := "config error: failed to load config"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandError(t *testing.T) {
	cause := errors.New("proxy startup failed")
	err := NewCommandError("run", cause)

	want := "command run failed: proxy startup failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not reach the wrapped cause")
	}
}
