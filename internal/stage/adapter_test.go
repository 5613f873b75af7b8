package stage_test

import (
	"context"
	"errors"
	"testing"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/services"
	"podflow/internal/stage"
)

type fakeAdapter struct {
	name       string
	capability stage.Capability
}

func (f fakeAdapter) Name() string { return f.name }
func (f fakeAdapter) Capability() stage.Capability { return f.capability }
func (f fakeAdapter) Site() string { return "" }
func (f fakeAdapter) HealthCheck(context.Context) stage.Health { return stage.Healthy(f.name) }

type fakeProducer struct{ fakeAdapter }

func (f fakeProducer) Produce(context.Context, browser.Session, string) (*asset.Asset, error) {
	return nil, nil
}

type fakeTransformer struct{ fakeAdapter }

func (f fakeTransformer) Transform(context.Context, browser.Session, *asset.Asset) (string, error) {
	return "", nil
}

func newRegistry() *stage.Registry {
	return stage.NewRegistry(
		fakeProducer{fakeAdapter{name: "gpt", capability: stage.CapabilityProduce}},
		fakeTransformer{fakeAdapter{name: "bgremove", capability: stage.CapabilityTransform}},
		fakeTransformer{fakeAdapter{name: "upscale", capability: stage.CapabilityTransform}},
	)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	reg := newRegistry()
	adapter, err := reg.Lookup("GPT")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if adapter.Name() != "gpt" {
		t.Fatalf("unexpected adapter %q", adapter.Name())
	}
}

func TestLookupUnknownStage(t *testing.T) {
	reg := newRegistry()
	_, err := reg.Lookup("watermark")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveSequenceValid(t *testing.T) {
	reg := newRegistry()
	adapters, err := reg.ResolveSequence([]string{"gpt", "bgremove", "upscale", "upscale"})
	if err != nil {
		t.Fatalf("ResolveSequence: %v", err)
	}
	if len(adapters) != 4 {
		t.Fatalf("expected 4 adapters, got %d", len(adapters))
	}
}

func TestResolveSequenceRejectsTransformFirst(t *testing.T) {
	reg := newRegistry()
	_, err := reg.ResolveSequence([]string{"bgremove", "upscale"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveSequenceRejectsLateProducer(t *testing.T) {
	reg := newRegistry()
	_, err := reg.ResolveSequence([]string{"gpt", "gpt"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveSequenceRejectsEmpty(t *testing.T) {
	reg := newRegistry()
	if _, err := reg.ResolveSequence(nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
