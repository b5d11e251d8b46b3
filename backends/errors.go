package backends

import "errors"

var (
	// ErrLeaseTimeout means every backend stayed busy for the whole wait.
	ErrLeaseTimeout = errors.New("backends: timed out waiting for a free backend")

	// ErrNoValidBackends means no registered backend is usable.
	ErrNoValidBackends = errors.New("backends: no valid backends registered")

	// ErrPoolClosed is returned after Close.
	ErrPoolClosed = errors.New("backends: pool is closed")

	// ErrUnknownType is returned for an unregistered backend type id.
	ErrUnknownType = errors.New("backends: unknown backend type")

	// ErrUnknownBackend is returned for an id that is not in the pool.
	ErrUnknownBackend = errors.New("backends: unknown backend id")

	// ErrInvalidSettings is returned by constructors for unusable settings.
	ErrInvalidSettings = errors.New("backends: invalid backend settings")

	// ErrGenerationFailed wraps backend-side generation failures.
	ErrGenerationFailed = errors.New("backends: image generation failed")
)
