package fastpath

import (
	"context"
	"time"
)

// Consumer drains the ring and hands events to the engine dispatch.
// Single consumer per ring: batch processing amortizes loop overhead,
// a short sleep bounds CPU when idle.
type Consumer struct {
	Ring      *Ring
	Handler   func(FastEvent)
	BatchSize int
}

// NewConsumer creates a consumer with the default batch size
func NewConsumer(ring *Ring, handler func(FastEvent)) *Consumer {
	return &Consumer{Ring: ring, Handler: handler, BatchSize: 128}
}

// Run processes events until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) {
	idle := time.NewTimer(time.Millisecond)
	defer idle.Stop()

	for {
		processed := 0
		for processed < c.BatchSize {
			evt, ok := c.Ring.Pop()
			if !ok {
				break
			}
			c.Handler(evt)
			processed++
		}

		if processed > 0 {
			continue
		}

		idle.Reset(time.Millisecond)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}
