package action

import (
	"fmt"
	"sync"
)

// Registry holds sinks in registration order.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	sinks []Sink
	index map[string]int
}

// NewRegistry creates a Registry holding sinks in the given order.
func NewRegistry(sinks ...Sink) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, s := range sinks {
		r.Register(s)
	}
	return r
}

// Register appends a sink. Panics on duplicate type to surface misconfiguration early.
func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[s.Type()]; exists {
		panic(fmt.Sprintf("action registry: duplicate type %q", s.Type()))
	}
	r.index[s.Type()] = len(r.sinks)
	r.sinks = append(r.sinks, s)
}

// Get returns the sink for the given type.
func (r *Registry) Get(actionType string) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[actionType]
	if !ok {
		return nil, fmt.Errorf("no sink registered for action type %q", actionType)
	}
	return r.sinks[i], nil
}

// Types returns registered action types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		out[i] = s.Type()
	}
	return out
}

// Sinks returns a copy of the registered sinks in order.
func (r *Registry) Sinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Sink(nil), r.sinks...)
}

// Reset calls Reset on every sink that implements Resetter.
func (r *Registry) Reset() {
	for _, s := range r.Sinks() {
		if rs, ok := s.(Resetter); ok {
			rs.Reset()
		}
	}
}
