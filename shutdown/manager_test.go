package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"t2i_backend/logging"
)

func TestManagerShutdownRunsSteps(t *testing.T) {
	m := NewManager(logging.NewNop())
	var order []string
	m.Register("database", PriorityDatabase, func(context.Context) error {
		order = append(order, "database")
		return nil
	})
	m.Register("http", PriorityHTTP, func(context.Context) error {
		order = append(order, "http")
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 2 || order[0] != "http" || order[1] != "database" {
		t.Errorf("steps ran as %v, want [http database]", order)
	}
	if m.Context().Err() == nil {
		t.Error("Context() not canceled after Shutdown()")
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Shutdown()")
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v, want nil", err)
	}
}

func TestManagerShutdownWaitsForOperations(t *testing.T) {
	m := NewManager(logging.NewNop(), WithTimeout(2*time.Second))
	tracker := m.Tracker()
	if !tracker.Start() {
		t.Fatal("Start() = false before shutdown")
	}

	var finished atomic.Bool
	go func() {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		tracker.Done()
	}()

	var sawFinished bool
	m.Register("db", PriorityDatabase, func(context.Context) error {
		sawFinished = finished.Load()
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !sawFinished {
		t.Error("cleanup ran before the in-flight operation finished")
	}
	if tracker.Start() {
		t.Error("tracker accepted an operation after Shutdown()")
	}
}

func TestManagerShutdownReportsErrors(t *testing.T) {
	tests := []struct {
		name    string
		hold    bool
		stepErr error
	}{
		{name: "step failure", stepErr: errors.New("close failed")},
		{name: "operation never finishes", hold: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logging.NewNop(), WithTimeout(50*time.Millisecond))
			if tt.hold {
				m.Tracker().Start()
				defer m.Tracker().Done()
			}
			m.Register("step", 1, func(context.Context) error { return tt.stepErr })

			err := m.Shutdown()
			if err == nil {
				t.Fatal("Shutdown() error = nil, want an error")
			}
			if tt.stepErr != nil && !errors.Is(err, tt.stepErr) {
				t.Errorf("Shutdown() error = %v, want it to wrap %v", err, tt.stepErr)
			}
			if tt.hold && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Shutdown() error = %v, want deadline exceeded", err)
			}
		})
	}
}

func TestManagerTriggerEscalates(t *testing.T) {
	forced := 0
	m := NewManager(logging.NewNop(), WithForceExit(func() { forced++ }))

	m.Trigger("test")
	if m.Context().Err() == nil {
		t.Fatal("Context() not canceled after first Trigger()")
	}
	if forced != 0 {
		t.Fatalf("forced exit after one trigger")
	}
	m.Trigger("test")
	if forced != 1 {
		t.Errorf("forced %d times after second trigger, want 1", forced)
	}
}
