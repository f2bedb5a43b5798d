package server

import (
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

var _ httprate.LimitCounter = (*fixedWindowCounter)(nil)

// fixedWindowCounter counts requests per key in the current window only.
// httprate weighs the previous window into the rate; reporting it as zero
// gives every client a full quota as soon as a new window starts.
type fixedWindowCounter struct {
	mu     sync.Mutex
	window time.Time
	counts map[string]int
}

func newFixedWindowCounter() *fixedWindowCounter {
	return &fixedWindowCounter{
		counts: make(map[string]int),
	}
}

func (c *fixedWindowCounter) Config(requestLimit int, windowLength time.Duration) {}

func (c *fixedWindowCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *fixedWindowCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !currentWindow.Equal(c.window) {
		c.window = currentWindow
		c.counts = make(map[string]int)
	}
	c.counts[key] += amount
	return nil
}

func (c *fixedWindowCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !currentWindow.Equal(c.window) {
		return 0, 0, nil
	}
	return c.counts[key], 0, nil
}
