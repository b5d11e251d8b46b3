package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"t2i_backend/logging"

	"go.uber.org/zap"
)

// entry is one registered backend and its lease state.
type entry struct {
	id       int
	typeID   string
	settings Settings
	backend  Backend
	valid    bool
	initErr  string

	busy    bool
	removed bool
	// pending holds settings from Edit while the backend is leased; they are
	// applied when the lease comes back.
	pending Settings
}

// Access is the Lease handed out by Pool.
type Access struct {
	pool  *Pool
	entry *entry
	once  sync.Once
}

// ID returns the leased backend's pool id.
func (a *Access) ID() int { return a.entry.id }

// Backend returns the leased backend.
func (a *Access) Backend() Backend { return a.entry.backend }

// Release returns the backend to the pool. Only the first call has effect.
func (a *Access) Release() {
	a.once.Do(func() { a.pool.release(a.entry) })
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Total int `json:"total"`
	Valid int `json:"valid"`
	Busy  int `json:"busy"`
}

// Pool is an exclusive lease pool over a dynamic set of backends. A backend
// is handed to at most one Lease at a time.
//
// Waiters block on a broadcast channel that is closed and replaced every time
// a backend frees up or the set of backends changes.
//
// Entries are built through the Registry. An entry whose backend failed to
// initialize stays listed with its error and is never leased. Edit and
// Delete on a leased entry take effect when the lease is released.
//
// Public API:
//   - NewPool(): create an empty pool
//   - Lease(): wait for and take exclusive use of a free backend
//   - Add(), Edit(), Delete(): change the set of backends at runtime
//   - LoadFile(): add every backend listed in backends.yaml
//   - List(), Types(), Stats(): snapshots for the status routes
//   - Close(): close every backend and wake all waiters
type Pool struct {
	mu       sync.Mutex
	registry *Registry
	entries  map[int]*entry
	nextID   int
	closed   bool
	changed  chan struct{}
	logger   *logging.Logger

	// OnLease and OnRelease, when set, observe lease traffic (metrics).
	OnLease   func(backendID int, wait time.Duration)
	OnRelease func(backendID int)
}

// NewPool creates an empty pool that builds backends through registry.
func NewPool(registry *Registry, logger *logging.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		registry: registry,
		entries:  make(map[int]*entry),
		nextID:   1,
		changed:  make(chan struct{}),
		logger:   logger.Named("pool"),
	}
}

// Lease waits up to timeout (0 means only ctx bounds the wait) for a free,
// valid backend and leases it exclusively. Only the expiry of timeout itself
// is reported as ErrLeaseTimeout; when the caller's ctx ends first, its own
// error (context.Canceled or context.DeadlineExceeded) is returned.
func (p *Pool) Lease(ctx context.Context, timeout time.Duration) (Lease, error) {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if p.validCountLocked() == 0 {
			p.mu.Unlock()
			return nil, ErrNoValidBackends
		}
		if e := p.pickFreeLocked(); e != nil {
			e.busy = true
			p.mu.Unlock()
			if p.OnLease != nil {
				p.OnLease(e.id, time.Since(start))
			}
			return &Access{pool: p, entry: e}, nil
		}
		wait := p.changed
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLeaseTimeout
			}
			return nil, ctx.Err()
		}
	}
}

// pickFreeLocked returns the lowest-id free valid backend.
func (p *Pool) pickFreeLocked() *entry {
	var best *entry
	for _, e := range p.entries {
		if e.busy || !e.valid || e.removed {
			continue
		}
		if best == nil || e.id < best.id {
			best = e
		}
	}
	return best
}

func (p *Pool) validCountLocked() int {
	n := 0
	for _, e := range p.entries {
		if e.valid && !e.removed {
			n++
		}
	}
	return n
}

func (p *Pool) release(e *entry) {
	p.mu.Lock()
	e.busy = false
	switch {
	case e.removed || p.closed:
		closeBackend(e.backend)
	case e.pending != nil:
		p.initLocked(e, e.pending)
		e.pending = nil
	}
	p.broadcastLocked()
	p.mu.Unlock()

	if p.OnRelease != nil {
		p.OnRelease(e.id)
	}
}

func (p *Pool) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// initLocked (re)builds the backend of e from settings. Failures leave the
// entry registered but invalid, so it shows up in List with its error.
func (p *Pool) initLocked(e *entry, settings Settings) {
	closeBackend(e.backend)
	e.backend = nil
	e.settings = settings.Clone()

	backend, err := p.registry.Build(e.typeID, e.settings)
	if err != nil {
		e.valid = false
		e.initErr = err.Error()
		p.logger.Warn("backend init failed",
			zap.Int("backend_id", e.id),
			zap.String("type", e.typeID),
			zap.Error(err))
		return
	}
	e.backend = backend
	e.valid = true
	e.initErr = ""
}

// Add registers a new backend of the given type.
func (p *Pool) Add(typeID string, settings Settings) (BackendInfo, error) {
	if _, ok := p.registry.Type(typeID); !ok {
		return BackendInfo{}, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return BackendInfo{}, ErrPoolClosed
	}

	e := &entry{id: p.nextID, typeID: typeID}
	p.nextID++
	if settings == nil {
		settings = p.registry.Defaults(typeID)
	}
	p.initLocked(e, settings)
	p.entries[e.id] = e
	p.broadcastLocked()

	p.logger.Info("backend added",
		zap.Int("backend_id", e.id),
		zap.String("type", typeID),
		zap.Bool("valid", e.valid))
	return e.info(), nil
}

// Edit replaces the settings of a backend and rebuilds it. A leased backend
// is rebuilt when its lease is released.
func (p *Pool) Edit(id int, settings Settings) (BackendInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return BackendInfo{}, fmt.Errorf("%w: %d", ErrUnknownBackend, id)
	}
	if e.busy {
		e.pending = settings.Clone()
		info := e.info()
		info.Settings = e.pending.Redacted()
		return info, nil
	}
	p.initLocked(e, settings)
	p.broadcastLocked()
	return e.info(), nil
}

// Delete removes a backend. A leased backend is dropped once released.
// It reports whether the id existed.
func (p *Pool) Delete(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return false
	}
	delete(p.entries, id)
	e.removed = true
	if !e.busy {
		closeBackend(e.backend)
	}
	// wake waiters so they can notice the pool has no valid backends left
	p.broadcastLocked()
	p.logger.Info("backend deleted", zap.Int("backend_id", id))
	return true
}

// List returns every registered backend ordered by id.
func (p *Pool) List() []BackendInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]BackendInfo, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Types returns the registered backend types.
func (p *Pool) Types() []TypeInfo {
	return p.registry.Describe()
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s PoolStats
	for _, e := range p.entries {
		s.Total++
		if e.valid {
			s.Valid++
		}
		if e.busy {
			s.Busy++
		}
	}
	return s
}

// Close shuts the pool. Pending Lease calls return ErrPoolClosed; leased
// backends are closed when released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, e := range p.entries {
		if !e.busy {
			closeBackend(e.backend)
		}
	}
	p.broadcastLocked()
	return nil
}

func closeBackend(b Backend) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}

// BackendInfo is the externally visible description of a registered backend.
type BackendInfo struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Valid    bool     `json:"valid"`
	Busy     bool     `json:"busy"`
	Error    string   `json:"error,omitempty"`
	Settings Settings `json:"settings"`
}

func (e *entry) info() BackendInfo {
	return BackendInfo{
		ID:       e.id,
		Type:     e.typeID,
		Valid:    e.valid,
		Busy:     e.busy,
		Error:    e.initErr,
		Settings: e.settings.Redacted(),
	}
}

var _ LeasePool = (*Pool)(nil)
