package events

import (
	"context"
	"time"
)

// DefaultPollInterval is the consumer cadence used when none is configured.
const DefaultPollInterval = 50 * time.Millisecond

// Consumer drains a Channel on a fixed interval and hands each non-empty
// batch of events to Handle on the consumer goroutine.
type Consumer struct {
	Interval time.Duration
	Handle   func([]Event)
}

// Run polls ch until ctx ends, then performs one final drain so that events
// published before cancellation are not lost.
func (c Consumer) Run(ctx context.Context, ch *Channel) {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drain(ch)
			return
		case <-ticker.C:
			c.drain(ch)
		}
	}
}

func (c Consumer) drain(ch *Channel) {
	batch := ch.Poll()
	if len(batch) == 0 || c.Handle == nil {
		return
	}
	c.Handle(batch)
}
