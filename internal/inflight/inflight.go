// Package inflight tracks how many ProcessOrders are currently being
// handled, so a listener can refuse new work once it's at capacity
// instead of piling up goroutines unboundedly.
package inflight

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is an atomic bounded counter, optionally observed by a
// Prometheus gauge.
type Counter struct {
	max   int64
	count int64
	gauge prometheus.Gauge
}

// New builds a Counter bounded at max. A max of 0 or less means unbounded.
func New(max int64, gauge prometheus.Gauge) *Counter {
	return &Counter{max: max, gauge: gauge}
}

// ErrAtCapacity is returned by TryAcquire when the bound has been reached.
var ErrAtCapacity = fmt.Errorf("inflight: at capacity")

// TryAcquire increments the count and returns a release function, unless
// the counter is already at its bound, in which case it returns
// ErrAtCapacity and leaves the count unchanged.
func (c *Counter) TryAcquire() (release func(), err error) {
	for {
		cur := atomic.LoadInt64(&c.count)
		if c.max > 0 && cur >= c.max {
			return nil, ErrAtCapacity
		}
		if atomic.CompareAndSwapInt64(&c.count, cur, cur+1) {
			if c.gauge != nil {
				c.gauge.Set(float64(cur + 1))
			}
			return c.release, nil
		}
	}
}

func (c *Counter) release() {
	n := atomic.AddInt64(&c.count, -1)
	if c.gauge != nil {
		c.gauge.Set(float64(n))
	}
}

// Count returns the current in-flight count.
func (c *Counter) Count() int64 {
	return atomic.LoadInt64(&c.count)
}
