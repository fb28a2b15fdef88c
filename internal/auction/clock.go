package auction

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/katatrina/gundam-live/internal/event"
	"github.com/rs/zerolog/log"
)

const DefaultTickInterval = time.Second

// Clock re-derives the reading of one auction on a fixed tick.
// Each tick starts from the timing snapshot and the wall clock; nothing is decremented locally,
// so the countdown cannot drift.
type Clock struct {
	auctionID string
	clock     clockwork.Clock
	interval  time.Duration
	readings  *event.Fanout[Reading]

	mu      sync.Mutex
	timing  Timing
	last    Status
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// ClockOption cấu hình Clock
type ClockOption func(*Clock)

// WithClockwork replaces the wall clock, mostly for tests.
func WithClockwork(clock clockwork.Clock) ClockOption {
	return func(c *Clock) {
		c.clock = clock
	}
}

// WithTickInterval sets the recomputation interval.
func WithTickInterval(interval time.Duration) ClockOption {
	return func(c *Clock) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func NewClock(auctionID string, timing Timing, opts ...ClockOption) *Clock {
	c := &Clock{
		auctionID: auctionID,
		clock:     clockwork.NewRealClock(),
		interval:  DefaultTickInterval,
		readings:  event.NewFanout[Reading]("status:" + auctionID),
		timing:    timing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the periodic recomputation until ctx is done or Stop is called.
// Calling Start on a running or stopped clock does nothing.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil || c.stopped {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	ticker := c.clock.NewTicker(c.interval)
	c.mu.Unlock()

	c.tick()

	go func() {
		defer close(c.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.tick()
			}
		}
	}()
}

// Stop cancels the tick and waits for the goroutine to exit. Safe to call more than once.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.readings.Close()
}

// SetTiming replaces the timing snapshot (after a poll or a push) and re-derives immediately.
func (c *Clock) SetTiming(timing Timing) {
	c.mu.Lock()
	c.timing = timing
	stopped := c.stopped
	c.mu.Unlock()

	if !stopped {
		c.tick()
	}
}

// Timing returns the current snapshot.
func (c *Clock) Timing() Timing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timing
}

// Current derives a fresh reading from the snapshot and the wall clock.
func (c *Clock) Current() Reading {
	return Describe(c.Timing(), c.clock.Now())
}

// Subscribe registers for readings; the channel is closed when the clock stops.
func (c *Clock) Subscribe() chan Reading {
	ch := make(chan Reading, 1)
	c.readings.Register(ch)
	return ch
}

// Unsubscribe releases a channel returned by Subscribe.
func (c *Clock) Unsubscribe(ch chan Reading) {
	c.readings.Unregister(ch)
}

func (c *Clock) tick() {
	reading := c.Current()

	c.mu.Lock()
	previous := c.last
	c.last = reading.Status
	c.mu.Unlock()

	if previous != reading.Status {
		log.Info().
			Str("auction_id", c.auctionID).
			Str("old_status", string(previous)).
			Str("new_status", string(reading.Status)).
			Msg("auction status changed")
	}

	c.readings.Broadcast(reading)
}
