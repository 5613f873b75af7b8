package services_test

import (
	"errors"
	"strings"
	"testing"

	"podflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "upscale", "monitor", "progress stalled", base)
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
	for _, fragment := range []string{"upscale", "monitor", "progress stalled"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "gpt", "send prompt", "no marker", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Class
	}{
		{"transient", services.Wrap(services.ErrTransient, "s", "op", "m", nil), services.ClassTransient},
		{"timeout", services.Wrap(services.ErrTimeout, "s", "op", "m", nil), services.ClassTransient},
		{"rate limited", services.Wrap(services.ErrRateLimited, "s", "op", "m", nil), services.ClassTransient},
		{"validation", services.Wrap(services.ErrValidation, "s", "op", "m", nil), services.ClassPermanent},
		{"not found", services.Wrap(services.ErrNotFound, "s", "op", "m", nil), services.ClassPermanent},
		{"exhausted transient", services.Wrap(services.ErrRetriesExhausted, "s", "op", "m", services.Wrap(services.ErrTimeout, "s", "op", "m", nil)), services.ClassPermanent},
		{"plain", errors.New("boom"), services.ClassPermanent},
		{"nil", nil, services.ClassPermanent},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
