package dispatcher

import "sort"

// Registry maps handler names to their implementations. It is populated
// once at startup and read-only thereafter, so lookups are unsynchronized.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its own name. Last registration wins.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Lookup resolves a handler by name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered handler names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
