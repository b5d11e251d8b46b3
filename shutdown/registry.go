package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is one cleanup step. It should honor ctx's deadline and be safe to
// call more than once.
type Func func(ctx context.Context) error

// Step priorities used by the server. Lower runs first.
const (
	PriorityHTTP     = 10 // stop accepting requests
	PriorityBackends = 20 // close the backend pool
	PriorityHistory  = 30 // flush queued history rows
	PriorityDatabase = 40 // close the history database
	PriorityLogger   = 90 // flush logs last
)

type step struct {
	name     string
	priority int
	seq      int
	fn       Func
}

// Registry holds named cleanup steps and runs them once, in priority order.
// Steps with equal priority run in registration order.
type Registry struct {
	mu     sync.Mutex
	steps  []step
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a step. Registering after Run is a no-op.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.steps = append(r.steps, step{name: name, priority: priority, seq: len(r.steps), fn: fn})
}

// Run executes every step, even after failures, and returns the failures
// wrapped with the step name. Later calls return nil.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	steps := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errs
}

// Names lists step names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.sorted()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	return names
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// sorted must be called with r.mu held.
func (r *Registry) sorted() []step {
	out := make([]step, len(r.steps))
	copy(out, r.steps)
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
