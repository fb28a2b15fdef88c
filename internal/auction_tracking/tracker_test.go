package auctiontracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/auction"
	"github.com/katatrina/gundam-live/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuctionID = "0b3a1c4e-6d1f-4b8e-9c55-1f2d3e4a5b6c"

type fakeSource struct {
	mu       sync.Mutex
	snapshot auction.Snapshot
	bids     []auction.Bid
	err      error
	polls    int
}

func (s *fakeSource) GetAuction(_ context.Context, auctionID string) (auction.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	if s.err != nil {
		return auction.Snapshot{}, s.err
	}
	return s.snapshot, nil
}

func (s *fakeSource) ListAuctionBids(_ context.Context, auctionID string) ([]auction.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auction.Bid(nil), s.bids...), nil
}

func (s *fakeSource) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func newSource(endTime string) *fakeSource {
	now := time.Now()
	return &fakeSource{
		snapshot: auction.Snapshot{
			ID:           testAuctionID,
			EndTime:      endTime,
			Status:       "active",
			CurrentPrice: 30_000_000,
			TotalBids:    2,
		},
		bids: []auction.Bid{
			{ID: "b2", AuctionID: testAuctionID, Amount: 30_000_000, CreatedAt: now.Add(-time.Minute)},
			{ID: "b1", AuctionID: testAuctionID, Amount: 29_000_000, CreatedAt: now.Add(-2 * time.Minute)},
		},
	}
}

func newTracker(t *testing.T, source Source, opts ...TrackerOption) (*AuctionTracker, *auction.Clock, *reconcile.Feed[auction.Bid]) {
	t.Helper()

	clock := auction.NewClock(testAuctionID, auction.Timing{})
	bids := reconcile.NewFeed[auction.Bid]("bids")
	tracker, err := NewAuctionTracker(source, testAuctionID, clock, bids, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tracker.Stop()
		clock.Stop()
		bids.Close()
	})
	return tracker, clock, bids
}

func TestPollRefreshesTimingAndSeedsBids(t *testing.T) {
	source := newSource(time.Now().Add(time.Hour).Format(time.RFC3339))

	tracker, clock, bids := newTracker(t, source)

	require.Equal(t, auction.StatusEnded, clock.Current().Status)
	require.NoError(t, tracker.Poll(context.Background()))

	assert.Equal(t, auction.StatusActive, clock.Current().Status)

	items := bids.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "b1", items[0].ID)
	assert.Equal(t, "b2", items[1].ID)

	// a second poll with the same bids changes nothing
	require.NoError(t, tracker.Poll(context.Background()))
	assert.Len(t, bids.Items(), 2)
}

func TestPollMalformedTimingDegradesToEnded(t *testing.T) {
	source := newSource("not-a-time")
	tracker, clock, bids := newTracker(t, source)

	require.NoError(t, tracker.Poll(context.Background()))

	reading := clock.Current()
	assert.Equal(t, auction.StatusEnded, reading.Status)
	assert.False(t, reading.BiddingOn)
	assert.Len(t, bids.Items(), 2)
}

func TestPollErrorKeepsState(t *testing.T) {
	source := newSource(time.Now().Add(time.Hour).Format(time.RFC3339))
	source.err = apperror.ErrTimeout
	tracker, _, bids := newTracker(t, source)

	err := tracker.Poll(context.Background())
	assert.ErrorIs(t, err, apperror.ErrTimeout)
	assert.Empty(t, bids.Items())
}

func TestStartPollsImmediately(t *testing.T) {
	source := newSource(time.Now().Add(time.Hour).Format(time.RFC3339))
	tracker, clock, _ := newTracker(t, source, WithPollInterval(time.Hour))

	require.NoError(t, tracker.Start(context.Background()))

	require.Eventually(t, func() bool {
		return clock.Current().Status == auction.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, source.pollCount())

	require.NoError(t, tracker.Stop())
}

func TestPollAfterStopIsDiscarded(t *testing.T) {
	source := newSource(time.Now().Add(time.Hour).Format(time.RFC3339))
	tracker, clock, bids := newTracker(t, source)

	require.NoError(t, tracker.Stop())
	require.NoError(t, tracker.Poll(context.Background()))

	assert.Equal(t, auction.StatusEnded, clock.Current().Status)
	assert.Empty(t, bids.Items())
}

func TestSnapshotHandlerOwnsTheClock(t *testing.T) {
	source := newSource(time.Now().Add(time.Hour).Format(time.RFC3339))

	var polled []auction.Snapshot
	tracker, clock, bids := newTracker(t, source, WithSnapshotHandler(func(s auction.Snapshot, timing auction.Timing) bool {
		polled = append(polled, s)
		return false
	}))

	// a rejected snapshot leaves the clock alone, the bids are still caught up
	require.NoError(t, tracker.Poll(context.Background()))
	require.Len(t, polled, 1)
	assert.Equal(t, int64(30_000_000), polled[0].CurrentBid())
	assert.Equal(t, auction.StatusEnded, clock.Current().Status)
	assert.Len(t, bids.Items(), 2)
}
