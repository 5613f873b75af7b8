package shop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/services"
)

// ErrDailyLimit signals the shop refused further uploads for the day. The
// engine aborts the batch and leaves remaining assets pending; nothing about
// the asset itself is wrong.
var ErrDailyLimit = errors.New("daily upload limit reached")

// Template is a shop-side product template a design gets applied to.
type Template struct {
	ID           string
	CreatedAt    time.Time
	ProductCount int
}

// Valid reports whether the template covers enough products to be worth
// publishing against.
func (t Template) Valid(minProducts int) bool {
	return t.ProductCount >= minProducts
}

// SelectTemplate picks the most recently created valid template.
func SelectTemplate(templates []Template, minProducts int) (*Template, error) {
	var best *Template
	for i := range templates {
		tpl := &templates[i]
		if !tpl.Valid(minProducts) {
			continue
		}
		if best == nil || tpl.CreatedAt.After(best.CreatedAt) {
			best = tpl
		}
	}
	if best == nil {
		return nil, services.Wrap(services.ErrValidation, "shop", "select template",
			fmt.Sprintf("no template with at least %d products, create one in the shop first", minProducts), nil)
	}
	return best, nil
}

// Adapter describes the contract the upload engine needs from each shop.
type Adapter interface {
	Name() string
	// Site names the browser profile the shop signs in with.
	Site() string
	// Authenticate runs once per batch, confirms the login works, and
	// returns the template submissions run against. Shops without a
	// template concept return nil.
	Authenticate(ctx context.Context, session browser.Session) (*Template, error)
	// AlreadySubmitted probes whether the asset's design is already in the
	// shop. The engine calls it before every re-submission so a retry
	// never publishes a duplicate.
	AlreadySubmitted(ctx context.Context, session browser.Session, a *asset.Asset) (bool, error)
	// Submit publishes one asset against the template.
	Submit(ctx context.Context, session browser.Session, a *asset.Asset, tpl *Template) error
}

// Registry resolves shop names to adapters.
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

// Lookup resolves a shop by name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "shop", "lookup",
			fmt.Sprintf("unknown shop %q (known: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	return adapter, nil
}

// Names returns the registered shop names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
