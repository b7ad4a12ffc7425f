package scraper

import (
	"errors"
	"fmt"
	"strings"

	"smartshop/price-service/internal/scraper/adapters"
)

// ErrUnsupportedStore is returned when no adapter serves a store name.
var ErrUnsupportedStore = errors.New("unsupported store")

// Registry maps store-name fragments to adapters.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	fragment string
	adapter  adapters.Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an adapter for every store whose name contains fragment.
// Earlier registrations win when several fragments match.
func (r *Registry) Register(fragment string, a adapters.Adapter) {
	r.entries = append(r.entries, registryEntry{
		fragment: strings.ToLower(strings.TrimSpace(fragment)),
		adapter:  a,
	})
}

// Resolve picks the adapter for storeName by case-insensitive substring.
func (r *Registry) Resolve(storeName string) (adapters.Adapter, error) {
	name := strings.ToLower(storeName)
	for _, e := range r.entries {
		if e.fragment != "" && strings.Contains(name, e.fragment) {
			return e.adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, storeName)
}

// DefaultStores are the storefronts supported out of the box.
var DefaultStores = []string{"amazon", "ebay"}

// DefaultRegistry registers DefaultStores. With an extractor URL every store
// goes through the sidecar; otherwise pages are read directly.
func DefaultRegistry(extractorURL string, opts adapters.HTTPOptions) (*Registry, error) {
	r := NewRegistry()
	for _, store := range DefaultStores {
		if extractorURL == "" {
			r.Register(store, adapters.NewHTMLAdapter(store, opts))
			continue
		}
		a, err := adapters.NewExtractorAdapter(extractorURL, store, opts)
		if err != nil {
			return nil, err
		}
		r.Register(store, a)
	}
	return r, nil
}
