package hedge

import "fmt"

// ProviderID names one backend provider. It is the key used by the
// registry, the ledger and every error a race returns.
type ProviderID string

// String implements fmt.Stringer.
func (id ProviderID) String() string {
	return string(id)
}

// ProviderConfig identifies a provider and where to reach it.
type ProviderConfig struct {
	// ID is the provider's unique name.
	ID ProviderID

	// Endpoint is the provider's call address, typically an RPC URL.
	Endpoint string
}

// Registry is an ordered, read-only set of providers.
//
// The order given to NewRegistry is the order races launch providers in,
// so the initially-raced providers are always the same prefix.
type Registry struct {
	providers []ProviderConfig
	index     map[ProviderID]int
}

// NewRegistry builds a Registry from the given providers.
//
// It fails with ErrNoProviders on an empty list, ErrInvalidProvider on an
// empty ID and ErrDuplicateProvider when an ID appears twice.
func NewRegistry(providers []ProviderConfig) (*Registry, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	r := &Registry{
		providers: make([]ProviderConfig, len(providers)),
		index:     make(map[ProviderID]int, len(providers)),
	}

	for i, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: provider at index %d has an empty id", ErrInvalidProvider, i)
		}
		if _, dup := r.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, p.ID)
		}
		r.index[p.ID] = i
		r.providers[i] = p
	}

	return r, nil
}

// List returns a copy of the providers in registration order.
func (r *Registry) List() []ProviderConfig {
	out := make([]ProviderConfig, len(r.providers))
	copy(out, r.providers)
	return out
}

// IDs returns the provider IDs in registration order.
func (r *Registry) IDs() []ProviderID {
	ids := make([]ProviderID, len(r.providers))
	for i, p := range r.providers {
		ids[i] = p.ID
	}
	return ids
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// Get returns the provider registered under id.
func (r *Registry) Get(id ProviderID) (ProviderConfig, bool) {
	i, ok := r.index[id]
	if !ok {
		return ProviderConfig{}, false
	}
	return r.providers[i], true
}

func (r *Registry) at(i int) ProviderConfig {
	return r.providers[i]
}
