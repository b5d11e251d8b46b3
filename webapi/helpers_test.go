package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"t2i_backend/backends"
	"t2i_backend/db"
	"t2i_backend/logging"
	"t2i_backend/metrics"
	"t2i_backend/shutdown"
	"t2i_backend/t2i"
)

// failingBackend always fails generation.
type failingBackend struct{}

func (failingBackend) Generate(ctx context.Context, params backends.Params) ([]backends.Image, error) {
	return nil, errors.New("model exploded")
}

// historySpy collects history rows.
type historySpy struct {
	mu   sync.Mutex
	rows []db.ImageRecord
}

func (h *historySpy) Write(rec db.ImageRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, rec)
	return true
}

func (h *historySpy) Rows() []db.ImageRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]db.ImageRecord(nil), h.rows...)
}

type testEnv struct {
	server   *Server
	pool     *backends.Pool
	sessions *SessionStore
	history  *historySpy
	recorder *metrics.Recorder
	tracker  *shutdown.OperationTracker
	config   ServerConfig
}

// newTestEnv builds a server over a pool holding the given backend types.
// "failing" is available next to the built-in types.
func newTestEnv(t *testing.T, backendTypes ...string) *testEnv {
	t.Helper()

	registry := backends.DefaultRegistry()
	registry.Register(backends.BackendType{
		ID:  "failing",
		New: func(backends.Settings) (backends.Backend, error) { return failingBackend{}, nil },
	})
	pool := backends.NewPool(registry, nil)
	t.Cleanup(func() { pool.Close() })
	for _, typ := range backendTypes {
		if _, err := pool.Add(typ, nil); err != nil {
			t.Fatalf("Add(%q) failed: %v", typ, err)
		}
	}

	recorder := metrics.NewRecorder(metrics.NewStore(10, "test", time.Now()))
	dispatcher := t2i.NewDispatcher(pool, t2i.Config{
		MaxParallel:  2,
		LeaseTimeout: 500 * time.Millisecond,
		Observer:     recorder,
	}, nil)

	config := DefaultServerConfig()
	config.Addr = "127.0.0.1:0"
	config.OutputPath = t.TempDir()
	config.ModelRoot = t.TempDir()
	config.WSSendTimeout = 5 * time.Second

	env := &testEnv{
		pool:     pool,
		sessions: NewSessionStore(time.Hour),
		history:  &historySpy{},
		recorder: recorder,
		tracker:  shutdown.NewOperationTracker(),
		config:   config,
	}
	server, err := NewServer(config, Deps{
		Dispatcher: dispatcher,
		Pool:       pool,
		Sessions:   env.sessions,
		History:    env.history,
		Recorder:   recorder,
		Tracker:    env.tracker,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	env.server = server
	return env
}

// post sends body as JSON and decodes the response into out when non-nil.
func (e *testEnv) post(t *testing.T, path string, body any, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s response %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	var resp SessionResponse
	if code := e.post(t, "/API/GetNewSession", nil, &resp); code != http.StatusOK {
		t.Fatalf("GetNewSession status = %d", code)
	}
	return resp.SessionID
}

// smallRequest asks for n tiny placeholder images.
func smallRequest(n int) map[string]any {
	return map[string]any{
		"images": n,
		"prompt": "a red fox",
		"seed":   10,
		"width":  32,
		"height": 32,
	}
}
