package domain

import "fmt"

// Registry holds the configured provider instances for the process
// lifetime. It is built once from validated configuration and passed
// explicitly into discovery and the executor; there is no ambient global.
type Registry struct {
	order       []string
	providers   map[string]RepositoryProvider
	concurrency map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		providers:   make(map[string]RepositoryProvider),
		concurrency: make(map[string]int),
	}
}

// NewRegistryFromConfig resolves credentials and constructs one adapter per
// configured provider. A bad credentials reference or factory failure fails
// the whole invocation; nothing has touched the network for real work yet.
func NewRegistryFromConfig(cfg Config, store CredentialStore, factory ProviderFactory) (*Registry, error) {
	r := NewRegistry()
	for _, pc := range cfg.Providers {
		creds, err := store.Credentials(pc.Name)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		p, err := factory(pc, creds)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if err := r.Register(pc.Name, p, pc.Concurrency); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider under name with its default concurrency.
func (r *Registry) Register(name string, p RepositoryProvider, concurrency int) error {
	if _, dup := r.providers[name]; dup {
		return validationErrorf("duplicate provider name %q", name)
	}
	r.order = append(r.order, name)
	r.providers[name] = p
	r.concurrency[name] = concurrency
	return nil
}

// Provider looks up one adapter by registry key.
func (r *Registry) Provider(name string) (RepositoryProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registry keys in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Select resolves which providers service a query: the named one, or all of
// them in configuration order when filter is empty.
func (r *Registry) Select(filter string) ([]RepositoryProvider, error) {
	if filter == "" {
		out := make([]RepositoryProvider, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.providers[name])
		}
		return out, nil
	}
	p, ok := r.providers[filter]
	if !ok {
		return nil, &NotFoundError{Resource: "provider " + filter}
	}
	return []RepositoryProvider{p}, nil
}

// DefaultConcurrency returns the most conservative default among the given
// providers, so a mixed batch never exceeds what its slowest provider is
// comfortable with. Always operator-overridable at the call site.
func (r *Registry) DefaultConcurrency(providers []RepositoryProvider) int {
	min := 0
	for _, p := range providers {
		c := r.concurrency[p.Name()]
		if c > 0 && (min == 0 || c < min) {
			min = c
		}
	}
	if min == 0 {
		min = 4
	}
	return min
}
