// Package live composes the per-view state of the engine: the status clock, the reconciled
// streams and their two producers (push and polling).
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/auction"
	auctiontracking "github.com/katatrina/gundam-live/internal/auction_tracking"
	"github.com/katatrina/gundam-live/internal/event"
	"github.com/katatrina/gundam-live/internal/realtime"
	"github.com/katatrina/gundam-live/internal/reconcile"
	"github.com/rs/zerolog/log"
)

const DefaultBidLimit = 200

// AuctionViewConfig tunes an AuctionView. Zero values fall back to defaults.
type AuctionViewConfig struct {
	TickInterval   time.Duration
	PollInterval   time.Duration
	BidLimit       int
	DedupCacheSize int
	Clock          clockwork.Clock
}

// PricePoint is one point of the price chart.
type PricePoint struct {
	At    time.Time `json:"at"`
	Price int64     `json:"price"`
}

// AuctionView is everything one open auction page needs. It owns its manager: closing the
// view stops the manager, the poller and the clock.
type AuctionView struct {
	auctionID string
	clock     *auction.Clock
	bids      *reconcile.Feed[auction.Bid]
	tracker   *auctiontracking.AuctionTracker
	manager   *realtime.Manager
	subID     realtime.SubscriptionID

	mu       sync.Mutex
	snapshot auction.Snapshot
	closed   bool
}

// OpenAuctionView loads the auction and starts both producers. Only the initial REST load can
// fail the call; the push stream is best effort and its failure is logged.
// manager may be nil, in which case the view relies on polling alone.
func OpenAuctionView(ctx context.Context, source auctiontracking.Source, manager *realtime.Manager, auctionID string, config AuctionViewConfig) (*AuctionView, error) {
	snapshot, err := source.GetAuction(ctx, auctionID)
	if err != nil {
		if manager != nil {
			manager.Stop()
		}
		return nil, fmt.Errorf("failed to load auction %s: %w", auctionID, err)
	}

	timing, err := snapshot.Timing()
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("auction timing is malformed, treating auction as ended")
	}

	var clockOpts []auction.ClockOption
	var trackerOpts []auctiontracking.TrackerOption
	if config.Clock != nil {
		clockOpts = append(clockOpts, auction.WithClockwork(config.Clock))
		trackerOpts = append(trackerOpts, auctiontracking.WithSchedulerClock(config.Clock))
	}
	clockOpts = append(clockOpts, auction.WithTickInterval(config.TickInterval))
	trackerOpts = append(trackerOpts, auctiontracking.WithPollInterval(config.PollInterval))

	bidLimit := config.BidLimit
	if bidLimit <= 0 {
		bidLimit = DefaultBidLimit
	}

	view := &AuctionView{
		auctionID: auctionID,
		clock:     auction.NewClock(auctionID, timing, clockOpts...),
		bids: reconcile.NewFeed[auction.Bid]("bids:"+auctionID,
			reconcile.WithLimit(bidLimit),
			reconcile.WithSeenCacheSize(config.DedupCacheSize),
		),
		manager:  manager,
		snapshot: snapshot,
	}

	trackerOpts = append(trackerOpts, auctiontracking.WithSnapshotHandler(view.apply))
	view.tracker, err = auctiontracking.NewAuctionTracker(source, auctionID, view.clock, view.bids, trackerOpts...)
	if err != nil {
		if manager != nil {
			manager.Stop()
		}
		return nil, err
	}

	view.clock.Start(ctx)
	if err = view.tracker.Start(ctx); err != nil {
		view.clock.Stop()
		view.bids.Close()
		if manager != nil {
			manager.Stop()
		}
		return nil, err
	}

	if manager != nil {
		view.subID = manager.On(event.KindBid, view.handle)
		if err := manager.JoinGroup(ctx, event.AuctionGroup(auctionID)); err != nil {
			log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to join auction group")
		}
		if err := manager.Start(ctx); err != nil {
			var connErr *apperror.ConnectionError
			if errors.As(err, &connErr) {
				log.Warn().Err(err).Str("auction_id", auctionID).Msg("push stream unavailable, polling only")
			} else {
				log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to start push stream")
			}
		}
	}

	return view, nil
}

func (v *AuctionView) AuctionID() string {
	return v.auctionID
}

// Status derives the current reading.
func (v *AuctionView) Status() auction.Reading {
	return v.clock.Current()
}

// Snapshot returns the latest snapshot, polled or pushed, in arrival order.
func (v *AuctionView) Snapshot() auction.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

// CurrentBid is the highest of the snapshot price and the newest reconciled bid.
// It implements autobid.PriceSource for the auction of this view.
func (v *AuctionView) CurrentBid(ctx context.Context, auctionID string) (int64, error) {
	if auctionID != v.auctionID {
		return 0, fmt.Errorf("view of auction %s cannot price auction %s", v.auctionID, auctionID)
	}

	current := v.Snapshot().CurrentBid()
	for _, bid := range v.bids.Items() {
		if bid.Amount > current {
			current = bid.Amount
		}
	}
	return current, nil
}

// Bids returns the reconciled ticker, oldest first.
func (v *AuctionView) Bids() []auction.Bid {
	return v.bids.Items()
}

// PriceHistory derives the price chart from the ticker.
func (v *AuctionView) PriceHistory() []PricePoint {
	return PriceHistory(v.bids.Items())
}

// SubscribeBids streams the ticker after every change.
func (v *AuctionView) SubscribeBids() chan []auction.Bid {
	return v.bids.Subscribe()
}

func (v *AuctionView) UnsubscribeBids(ch chan []auction.Bid) {
	v.bids.Unsubscribe(ch)
}

// SubscribeStatus streams status readings on every tick.
func (v *AuctionView) SubscribeStatus() chan auction.Reading {
	return v.clock.Subscribe()
}

func (v *AuctionView) UnsubscribeStatus(ch chan auction.Reading) {
	v.clock.Unsubscribe(ch)
}

// StreamState reports the push connection state, or Closed when the view polls only.
func (v *AuctionView) StreamState() realtime.State {
	if v.manager == nil {
		return realtime.StateClosed
	}
	return v.manager.State()
}

// Close tears the view down. Safe to call more than once.
func (v *AuctionView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	if v.manager != nil {
		v.manager.Off(v.subID)
		v.manager.Stop()
	}
	if err := v.tracker.Stop(); err != nil {
		log.Warn().Err(err).Str("auction_id", v.auctionID).Msg("failed to stop auction tracker")
	}
	v.clock.Stop()
	v.bids.Close()
}

func (v *AuctionView) handle(evt event.StreamEvent) {
	switch evt.Name {
	case event.HubEventBidPlaced:
		var bid auction.Bid
		if err := evt.Into(&bid); err != nil {
			log.Warn().Err(err).Msg("failed to decode bid")
			return
		}
		if bid.AuctionID != "" && bid.AuctionID != v.auctionID {
			return
		}
		v.bids.Apply(bid)

	case event.HubEventAuctionUpdated:
		var snapshot auction.Snapshot
		if err := evt.Into(&snapshot); err != nil {
			log.Warn().Err(err).Msg("failed to decode auction update")
			return
		}
		if snapshot.ID != v.auctionID {
			return
		}
		v.applySnapshot(snapshot)
	}
}

// applySnapshot applies a pushed snapshot.
func (v *AuctionView) applySnapshot(snapshot auction.Snapshot) bool {
	timing, err := snapshot.Timing()
	if err != nil {
		log.Warn().Err(err).Str("auction_id", v.auctionID).Msg("pushed auction timing is malformed, treating auction as ended")
	}
	return v.apply(snapshot, timing)
}

// apply replaces the snapshot and the clock timing unless snapshot is older than the one
// already applied. Pushed and polled snapshots both land here, under one lock, so their
// SetTiming calls follow the order of acceptance.
func (v *AuctionView) apply(snapshot auction.Snapshot, timing auction.Timing) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return false
	}
	// bản cập nhật cũ hơn không được kéo phiên lùi lại
	if v.snapshot.UpdatedAt != nil && snapshot.UpdatedAt != nil && snapshot.UpdatedAt.Before(*v.snapshot.UpdatedAt) {
		return false
	}
	v.snapshot = snapshot
	v.clock.SetTiming(timing)
	return true
}

// PriceHistory turns an ordered ticker into chart points, keeping only price increases.
func PriceHistory(bids []auction.Bid) []PricePoint {
	points := make([]PricePoint, 0, len(bids))
	var high int64
	for _, bid := range bids {
		if bid.Amount <= high {
			continue
		}
		high = bid.Amount
		points = append(points, PricePoint{At: bid.CreatedAt, Price: bid.Amount})
	}
	return points
}
