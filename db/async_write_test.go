package db

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAsyncWriterProcessesInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	w := NewAsyncWriter(func(n int) error {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil
	}, 10, nil)
	w.Start()
	w.Start()

	for i := 0; i < 5; i++ {
		w.Write(i)
	}
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("processed %d items, want 5", len(got))
	}
	for i, n := range got {
		if n != i {
			t.Errorf("item %d = %d", i, n)
		}
	}
}

func TestAsyncWriterFullQueue(t *testing.T) {
	block := make(chan struct{})
	w := NewAsyncWriter(func(string) error {
		<-block
		return nil
	}, 1, nil)
	w.Start()
	defer func() {
		close(block)
		w.Stop()
	}()

	w.Write("taken by the handler")
	time.Sleep(20 * time.Millisecond)
	if !w.Write("queued") {
		t.Fatal("Write() into empty queue failed")
	}
	if w.Write("dropped") {
		t.Error("Write() into full queue succeeded")
	}
	if w.WriteWithTimeout("dropped too", 10*time.Millisecond) {
		t.Error("WriteWithTimeout() into full queue succeeded")
	}
	if w.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", w.Dropped())
	}
}

func TestAsyncWriterHandlerErrorsDoNotStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	w := NewAsyncWriter(func(int) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("constraint failed")
	}, 0, nil)
	w.Start()
	w.Write(1)
	w.Write(2)
	w.Stop()

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}
