package format

import "fmt"

// Registry looks adapters up by name.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry registers adapters in the given order. Later adapters with a
// duplicate name replace earlier ones.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Name()]; !dup {
			r.order = append(r.order, a.Name())
		}
		r.adapters[a.Name()] = a
	}
	return r
}

// Default returns a registry with every built-in format.
func Default() *Registry {
	return NewRegistry(Alpaca{}, ChatML{})
}

// Get returns the adapter called name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return a, nil
}

// List returns the adapters in registration order.
func (r *Registry) List() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}
