// Package backends owns the compute backends that execute image generation
// and the exclusive lease pool that hands them out one call at a time.
//
// A Registry knows the backend types (placeholder, sdapi, openai) and builds
// a Backend from Settings. A Pool holds the configured instances and leases
// each one to at most one caller at a time.
//
// # Public API
//
//   - DefaultRegistry() *Registry, (*Registry) Register, Build, Describe
//   - NewPool(registry *Registry, logger *logging.Logger) *Pool
//   - (*Pool) Lease(ctx context.Context, timeout time.Duration) (Lease, error)
//   - (*Pool) Add, Edit, Delete, List, Types, Stats, Close
//   - (*Pool) LoadFile(path string) (int, error) for backends.yaml
//
// # Lease errors
//
//   - ErrLeaseTimeout: the pool's own timeout expired with every backend busy
//   - ErrNoValidBackends: no valid backend is registered
//   - ErrPoolClosed: Close was called
//   - context.Canceled, context.DeadlineExceeded: the caller's ctx ended first
package backends
