package auctiontracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/auction"
	"github.com/katatrina/gundam-live/internal/reconcile"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = 15 * time.Second

// Source is the REST side of an auction.
type Source interface {
	GetAuction(ctx context.Context, auctionID string) (auction.Snapshot, error)
	ListAuctionBids(ctx context.Context, auctionID string) ([]auction.Bid, error)
}

// AuctionTracker là producer polling REST cho một phiên đấu giá.
// It refreshes the timing of the status clock and seeds the bid feed that the push stream
// also writes into, so the view stays correct when push delivery is down.
type AuctionTracker struct {
	source    Source
	auctionID string
	clock     *auction.Clock
	bids      *reconcile.Feed[auction.Bid]
	interval  time.Duration
	scheduler gocron.Scheduler
	onPoll    SnapshotHandler

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// SnapshotHandler applies a polled snapshot and its timing, and reports whether it was accepted.
// A handler that owns newer state (a pushed update) rejects older snapshots.
type SnapshotHandler func(snapshot auction.Snapshot, timing auction.Timing) bool

// TrackerOption cấu hình AuctionTracker
type TrackerOption func(*trackerOptions)

type trackerOptions struct {
	interval time.Duration
	clock    clockwork.Clock
	onPoll   SnapshotHandler
}

// WithPollInterval sets how often the REST snapshot is refreshed.
func WithPollInterval(interval time.Duration) TrackerOption {
	return func(o *trackerOptions) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// WithSchedulerClock replaces the scheduler clock, mostly for tests.
func WithSchedulerClock(clock clockwork.Clock) TrackerOption {
	return func(o *trackerOptions) {
		o.clock = clock
	}
}

// WithSnapshotHandler hands every polled snapshot to fn, which then owns the status clock:
// the tracker no longer sets the timing itself.
func WithSnapshotHandler(fn SnapshotHandler) TrackerOption {
	return func(o *trackerOptions) {
		o.onPoll = fn
	}
}

// NewAuctionTracker tạo tracker mới cho phiên đấu giá auctionID.
func NewAuctionTracker(source Source, auctionID string, clock *auction.Clock, bids *reconcile.Feed[auction.Bid], opts ...TrackerOption) (*AuctionTracker, error) {
	options := trackerOptions{interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&options)
	}

	var schedulerOpts []gocron.SchedulerOption
	if options.clock != nil {
		schedulerOpts = append(schedulerOpts, gocron.WithClock(options.clock))
	}
	scheduler, err := gocron.NewScheduler(schedulerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &AuctionTracker{
		source:    source,
		auctionID: auctionID,
		clock:     clock,
		bids:      bids,
		interval:  options.interval,
		scheduler: scheduler,
		onPoll:    options.onPoll,
	}, nil
}

// Start bắt đầu polling. The first poll runs immediately.
func (t *AuctionTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	_, err := t.scheduler.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(
			func() {
				if err := t.Poll(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Str("auction_id", t.auctionID).Msg("failed to poll auction")
				}
			},
		),
		gocron.WithName("poll_auction:"+t.auctionID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule auction poll: %w", err)
	}

	t.scheduler.Start()
	return nil
}

// Stop dừng polling. Responses still in flight are discarded. Calling Stop again does nothing.
func (t *AuctionTracker) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return t.scheduler.Shutdown()
}

// Poll fetches the snapshot and the recent bids once.
// Malformed timing is logged and applied in its degraded form (Ended), never propagated.
func (t *AuctionTracker) Poll(ctx context.Context) error {
	snapshot, err := t.source.GetAuction(ctx, t.auctionID)
	if err != nil {
		return err
	}

	timing, err := snapshot.Timing()
	if err != nil {
		var warning *apperror.DataIntegrityWarning
		if !errors.As(err, &warning) {
			return err
		}
		log.Warn().Err(warning).Str("auction_id", t.auctionID).Msg("auction timing is malformed, treating auction as ended")
	}

	bids, err := t.source.ListAuctionBids(ctx, t.auctionID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return nil
	}

	if t.onPoll == nil {
		t.clock.SetTiming(timing)
	} else if !t.onPoll(snapshot, timing) {
		log.Debug().Str("auction_id", t.auctionID).Msg("polled snapshot is older than the applied one, skipped")
	}
	if added := t.bids.Seed(bids); added > 0 {
		log.Debug().Str("auction_id", t.auctionID).Int("bids", added).Msg("poll caught up missed bids")
	}
	return nil
}
