// Package t2i fans a request for N images out into N sub-tasks that run
// with bounded parallelism against a backends.LeasePool.
//
// Each sub-task leases one backend, generates with seed base+index, hands
// the image to a Sink and posts a Result. The first failure wins and stops
// new sub-tasks from being scheduled; sub-tasks already running finish and
// release their leases before the sequence ends.
//
// # Public API
//
//   - Normalize(req Request) Request and (Request) Task(i int) Task
//   - NewDispatcher(pool backends.LeasePool, cfg Config, logger *logging.Logger) *Dispatcher
//   - (*Dispatcher) Dispatch(ctx context.Context, req Request, sink Sink) iter.Seq[Result]
//   - Collect(seq iter.Seq[Result]) ([]Result, *Error)
//   - Stream(seq iter.Seq[Result], push func(Result) error) error
//
// # Error kinds
//
// A failed dispatch yields one Result whose Err has a Kind:
//
//   - KindLeaseTimeout: no backend freed up within Config.LeaseTimeout
//   - KindInvalidOperation: the pool cannot serve leases at all
//   - KindGenerationFailed: a backend call returned an error or panicked
//   - KindPersistenceFailed: the Sink could not store an output
//   - KindCanceled: the caller's context ended, deadline included
//
// # Quick Start
//
//	pool := backends.NewPool(backends.DefaultRegistry(), logger)
//	if _, err := pool.Add("placeholder", nil); err != nil {
//	    return err
//	}
//	d := t2i.NewDispatcher(pool, t2i.Config{MaxParallel: 4}, logger)
//
//	params := backends.DefaultParams()
//	params.Prompt = "a lighthouse at dusk"
//	results, derr := t2i.Collect(d.Dispatch(ctx, t2i.Request{Images: 8, Params: params}, output.InlineSink{}))
package t2i
