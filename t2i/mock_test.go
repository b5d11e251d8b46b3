package t2i

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"t2i_backend/backends"
)

// mockPool counts leases. capacity 0 means unlimited.
type mockPool struct {
	backend backends.Backend

	// failAttempt, when > 0, makes that lease attempt (1-based) return failErr.
	failAttempt int
	failErr     error

	sem chan struct{}

	mu          sync.Mutex
	attempts    int
	outstanding int
	peak        int
	leases      []*mockLease
}

func newMockPool(capacity int, backend backends.Backend) *mockPool {
	p := &mockPool{backend: backend}
	if capacity > 0 {
		p.sem = make(chan struct{}, capacity)
	}
	return p
}

func (p *mockPool) Lease(ctx context.Context, timeout time.Duration) (backends.Lease, error) {
	p.mu.Lock()
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	if p.failAttempt > 0 && attempt == p.failAttempt {
		return nil, p.failErr
	}

	if p.sem != nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case p.sem <- struct{}{}:
		case <-timer.C:
			return nil, backends.ErrLeaseTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding++
	if p.outstanding > p.peak {
		p.peak = p.outstanding
	}
	l := &mockLease{pool: p, id: len(p.leases) + 1}
	p.leases = append(p.leases, l)
	return l, nil
}

func (p *mockPool) stats() (attempts, outstanding, peak int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.outstanding, p.peak
}

// releaseCounts returns how often each lease was released.
func (p *mockPool) releaseCounts() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int32, len(p.leases))
	for i, l := range p.leases {
		out[i] = l.releases.Load()
	}
	return out
}

type mockLease struct {
	pool     *mockPool
	id       int
	releases atomic.Int32
}

func (l *mockLease) ID() int                   { return l.id }
func (l *mockLease) Backend() backends.Backend { return l.pool.backend }

func (l *mockLease) Release() {
	if l.releases.Add(1) != 1 {
		return
	}
	l.pool.mu.Lock()
	l.pool.outstanding--
	l.pool.mu.Unlock()
	if l.pool.sem != nil {
		<-l.pool.sem
	}
}

// mockBackend returns one image per call whose data is the seed.
type mockBackend struct {
	delay time.Duration

	// failSeed, when set, makes the call with that seed fail.
	failSeed *int64

	calls  atomic.Int32
	active atomic.Int32
}

func (b *mockBackend) Generate(ctx context.Context, params backends.Params) ([]backends.Image, error) {
	b.calls.Add(1)
	b.active.Add(1)
	defer b.active.Add(-1)

	if b.failSeed != nil && *b.failSeed == params.Seed {
		return nil, errors.New("backend exploded")
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return []backends.Image{{Data: []byte(strconv.FormatInt(params.Seed, 10)), MIMEType: "image/png"}}, nil
}

// seedSink echoes the image data, failing for failData when set.
type seedSink struct {
	failData string
	persists atomic.Int32
}

func (s *seedSink) Persist(ctx context.Context, img backends.Image, params backends.Params) (string, error) {
	s.persists.Add(1)
	if s.failData != "" && string(img.Data) == s.failData {
		return "", fmt.Errorf("disk full")
	}
	return string(img.Data), nil
}

func int64Ptr(v int64) *int64 { return &v }

// requestWithSeed builds a request for n images starting at seed.
func requestWithSeed(n int, seed int64) Request {
	p := backends.DefaultParams()
	p.Prompt = "a red fox"
	p.Seed = seed
	return Request{Images: n, Params: p}
}

// slowExceptBackend fails immediately for seed fail and sleeps otherwise.
type slowExceptBackend struct {
	fail  int64
	delay time.Duration
}

func (b *slowExceptBackend) Generate(ctx context.Context, params backends.Params) ([]backends.Image, error) {
	if params.Seed == b.fail {
		return nil, errors.New("out of memory")
	}
	time.Sleep(b.delay)
	return []backends.Image{{Data: []byte(strconv.FormatInt(params.Seed, 10))}}, nil
}
