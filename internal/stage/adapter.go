package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/services"
)

// Capability distinguishes stages that create assets from stages that
// rework an existing asset's image.
type Capability string

const (
	// CapabilityProduce creates a brand-new asset with image and metadata.
	CapabilityProduce Capability = "produce"
	// CapabilityTransform derives a new image artifact from the current one.
	CapabilityTransform Capability = "transform"
)

// Adapter describes the contract the generation pipeline needs from each stage.
type Adapter interface {
	Name() string
	Capability() Capability
	// Site names the browser profile the stage signs in with, or "" when
	// the stage works anonymously.
	Site() string
	HealthCheck(context.Context) Health
}

// Producer is implemented by produce-capable adapters.
type Producer interface {
	Adapter
	Produce(ctx context.Context, session browser.Session, parentDir string) (*asset.Asset, error)
}

// Transformer is implemented by transform-capable adapters.
type Transformer interface {
	Adapter
	Transform(ctx context.Context, session browser.Session, a *asset.Asset) (string, error)
}

// Registry resolves stage names from configured sequences to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	reg := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		reg.adapters[strings.ToLower(adapter.Name())] = adapter
	}
	return reg
}

// Lookup resolves a stage by name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "stage", "lookup",
			fmt.Sprintf("unknown stage %q (known: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	return adapter, nil
}

// Names returns the registered stage names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveSequence validates a configured stage sequence and returns the
// adapters in order. The first stage must produce, every later stage must
// transform.
func (r *Registry) ResolveSequence(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "stage", "sequence", "sequence must name at least one stage", nil)
	}
	adapters := make([]Adapter, 0, len(names))
	for i, name := range names {
		adapter, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		if i == 0 && adapter.Capability() != CapabilityProduce {
			return nil, services.Wrap(services.ErrConfiguration, "stage", "sequence",
				fmt.Sprintf("sequence must start with a producing stage, %q transforms", adapter.Name()), nil)
		}
		if i > 0 && adapter.Capability() != CapabilityTransform {
			return nil, services.Wrap(services.ErrConfiguration, "stage", "sequence",
				fmt.Sprintf("stage %q produces but appears after the first position", adapter.Name()), nil)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
