package t2i

import "sync"

// Result is one item of a dispatch sequence: either a produced output or the
// terminal error.
type Result struct {
	// Image is the sink's reference for the output: a data: URL or a stored path.
	Image string `json:"image"`
	Seed  int64  `json:"seed"`
	Index int    `json:"index"`
	Err   *Error `json:"-"`
}

// ResultChannel is an unbounded queue with many producers and one consumer.
// Post never blocks, so a sub-task can publish while it holds a lease.
// Items come out in completion order.
//
// The consumer waits on Ready, then takes everything posted so far with
// Drain. Ready has a one-slot buffer, so posts that land between two drains
// coalesce into a single wake-up.
type ResultChannel struct {
	mu    sync.Mutex
	items []Result
	ready chan struct{}
}

// NewResultChannel returns an empty channel.
func NewResultChannel() *ResultChannel {
	return &ResultChannel{ready: make(chan struct{}, 1)}
}

// Post appends r and wakes the consumer.
func (c *ResultChannel) Post(r Result) {
	c.mu.Lock()
	c.items = append(c.items, r)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value after one or more Posts since the last wake-up.
func (c *ResultChannel) Ready() <-chan struct{} {
	return c.ready
}

// Drain removes and returns everything queued so far.
func (c *ResultChannel) Drain() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items
	c.items = nil
	return items
}

// Len reports the number of queued items.
func (c *ResultChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
