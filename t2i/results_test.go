package t2i

import (
	"sync"
	"testing"
)

func TestResultChannelManyProducers(t *testing.T) {
	c := NewResultChannel()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Post(Result{Index: p*50 + i})
			}
		}(p)
	}
	wg.Wait()

	select {
	case <-c.Ready():
	default:
		t.Fatal("Ready() not signaled after Post")
	}

	seen := make(map[int]bool)
	for _, r := range c.Drain() {
		if seen[r.Index] {
			t.Errorf("index %d delivered twice", r.Index)
		}
		seen[r.Index] = true
	}
	if len(seen) != 400 {
		t.Errorf("drained %d items, want 400", len(seen))
	}
	if c.Len() != 0 || c.Drain() != nil {
		t.Error("channel not empty after Drain")
	}
}

func TestResultChannelCompletionOrder(t *testing.T) {
	c := NewResultChannel()
	c.Post(Result{Index: 2})
	c.Post(Result{Index: 0})
	c.Post(Result{Index: 1})

	got := c.Drain()
	want := []int{2, 0, 1}
	for i, r := range got {
		if r.Index != want[i] {
			t.Errorf("item %d has index %d, want %d", i, r.Index, want[i])
		}
	}
}
