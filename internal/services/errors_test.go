package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sightline/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "batch", "spawn", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"batch", "spawn", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"canceled", services.Wrap(services.ErrCanceled, "batch", "run", "stop", nil), "run was stopped; start a new batch to retry"},
		{"context canceled", fmt.Errorf("wait: %w", context.Canceled), "run was stopped; start a new batch to retry"},
		{"not found", services.Wrap(services.ErrNotFound, "deps", "lookup", "missing", nil), "check the path or install the tool and retry"},
		{"validation", services.Wrap(services.ErrValidation, "batch", "validate", "bad", nil), "fix the input selection and retry"},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), "review the config file"},
		{"tool", services.Wrap(services.ErrExternalTool, "process", "start", "bad", nil), "inspect the tool output in the job error log"},
		{"other", errors.New("x"), "check logs for details"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Hint(tt.err); got != tt.want {
				t.Fatalf("Hint() = %q, want %q", got, tt.want)
			}
		})
	}
}
