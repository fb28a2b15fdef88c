package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/auction"
	"github.com/katatrina/gundam-live/internal/event"
	"github.com/katatrina/gundam-live/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string { return &s }
func timePtr(t time.Time) *time.Time { return &t }

const testAuctionID = "0b3a1c4e-6d1f-4b8e-9c55-1f2d3e4a5b6c"

type fakeSource struct {
	mu       sync.Mutex
	snapshot auction.Snapshot
	bids     []auction.Bid
	err      error
}

func (s *fakeSource) GetAuction(_ context.Context, auctionID string) (auction.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.err
}

func (s *fakeSource) ListAuctionBids(_ context.Context, auctionID string) ([]auction.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auction.Bid(nil), s.bids...), nil
}

type unreachableTransport struct{}

func (unreachableTransport) Name() string { return "unreachable" }

func (unreachableTransport) Connect(context.Context) (realtime.Conn, error) {
	return nil, errors.New("connection refused")
}

func newSource() *fakeSource {
	return &fakeSource{
		snapshot: auction.Snapshot{
			ID:           testAuctionID,
			EndTime:      time.Now().Add(time.Hour).Format(time.RFC3339),
			Status:       "active",
			CurrentPrice: 30_000_000,
			TotalBids:    1,
		},
		bids: []auction.Bid{
			{ID: "b1", AuctionID: testAuctionID, Amount: 30_000_000, CreatedAt: time.Now().Add(-time.Minute)},
		},
	}
}

var slowConfig = AuctionViewConfig{
	TickInterval: time.Hour,
	PollInterval: time.Hour,
}

func openView(t *testing.T, source *fakeSource, manager *realtime.Manager) *AuctionView {
	t.Helper()

	view, err := OpenAuctionView(context.Background(), source, manager, testAuctionID, slowConfig)
	require.NoError(t, err)
	t.Cleanup(view.Close)

	require.Eventually(t, func() bool { return len(view.Bids()) == 1 }, 2*time.Second, 10*time.Millisecond)
	return view
}

func bidEvent(t *testing.T, bid auction.Bid) event.StreamEvent {
	t.Helper()

	payload, err := json.Marshal(bid)
	require.NoError(t, err)
	evt, err := event.Decode(event.HubEventBidPlaced, payload)
	require.NoError(t, err)
	return evt
}

func TestOpenAuctionView(t *testing.T) {
	view := openView(t, newSource(), nil)

	assert.Equal(t, testAuctionID, view.AuctionID())
	assert.Equal(t, auction.StatusActive, view.Status().Status)
	assert.Equal(t, realtime.StateClosed, view.StreamState())

	price, err := view.CurrentBid(context.Background(), testAuctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000), price)

	_, err = view.CurrentBid(context.Background(), "other-auction")
	assert.Error(t, err)
}

func TestOpenAuctionViewFailsOnInitialLoad(t *testing.T) {
	source := newSource()
	source.err = &apperror.RemoteRejection{StatusCode: 404, Reason: "auction not found"}

	manager := realtime.NewManager("test", unreachableTransport{})
	_, err := OpenAuctionView(context.Background(), source, manager, testAuctionID, slowConfig)

	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, realtime.StateClosed, manager.State())
}

func TestPushedBidsMergeWithPolledBids(t *testing.T) {
	view := openView(t, newSource(), nil)
	updates := view.SubscribeBids()

	bid := auction.Bid{ID: "b2", AuctionID: testAuctionID, Amount: 30_625_000, CreatedAt: time.Now()}
	view.handle(bidEvent(t, bid))
	view.handle(bidEvent(t, bid))

	// a bid for another auction is ignored
	view.handle(bidEvent(t, auction.Bid{ID: "x1", AuctionID: "other", Amount: 99_000_000, CreatedAt: time.Now()}))

	items := <-updates
	require.Len(t, items, 2)
	assert.Equal(t, "b2", items[1].ID)
	assert.Len(t, view.Bids(), 2)

	price, err := view.CurrentBid(context.Background(), testAuctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(30_625_000), price)

	history := view.PriceHistory()
	require.Len(t, history, 2)
	assert.Equal(t, int64(30_625_000), history[1].Price)
}

func TestAuctionUpdatedAppliesTiming(t *testing.T) {
	view := openView(t, newSource(), nil)
	readings := view.SubscribeStatus()

	now := time.Now()
	paused := view.Snapshot()
	paused.Status = "paused"
	paused.PausedAt = stringPtr(now.Format(time.RFC3339))
	paused.UpdatedAt = timePtr(now)

	payload, err := json.Marshal(paused)
	require.NoError(t, err)
	evt, err := event.Decode(event.HubEventAuctionUpdated, payload)
	require.NoError(t, err)

	view.handle(evt)
	assert.Equal(t, auction.StatusPaused, (<-readings).Status)
	assert.Equal(t, "paused", view.Snapshot().Status)

	// an older update replayed afterwards is ignored
	stale := paused
	stale.Status = "active"
	stale.PausedAt = nil
	stale.UpdatedAt = timePtr(now.Add(-time.Minute))
	view.applySnapshot(stale)

	assert.Equal(t, "paused", view.Snapshot().Status)
	assert.Equal(t, auction.StatusPaused, view.Status().Status)
}

func TestStalePollDoesNotUndoPushedPause(t *testing.T) {
	now := time.Now()
	source := newSource()
	source.snapshot.UpdatedAt = timePtr(now.Add(-time.Minute))
	view := openView(t, source, nil)

	paused := view.Snapshot()
	paused.Status = "paused"
	paused.PausedAt = stringPtr(now.Format(time.RFC3339))
	paused.UpdatedAt = timePtr(now)
	require.True(t, view.applySnapshot(paused))
	require.Equal(t, auction.StatusPaused, view.Status().Status)

	// the poll still returns the active snapshot from before the pause
	require.NoError(t, view.tracker.Poll(context.Background()))

	assert.Equal(t, auction.StatusPaused, view.Status().Status)
	assert.Equal(t, "paused", view.Snapshot().Status)

	// a newer poll is applied
	source.mu.Lock()
	source.snapshot.Status = "active"
	source.snapshot.UpdatedAt = timePtr(now.Add(time.Minute))
	source.mu.Unlock()
	require.NoError(t, view.tracker.Poll(context.Background()))

	assert.Equal(t, auction.StatusActive, view.Status().Status)
	assert.Equal(t, "active", view.Snapshot().Status)
}

func TestViewWithUnreachableHubKeepsPolling(t *testing.T) {
	manager := realtime.NewManager("test", unreachableTransport{}, realtime.WithReconnect(1, time.Hour, time.Hour))
	view := openView(t, newSource(), manager)

	require.Eventually(t, func() bool {
		return view.StreamState() == realtime.StateReconnecting
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, auction.StatusActive, view.Status().Status)

	view.Close()
	view.Close()
	assert.Equal(t, realtime.StateClosed, manager.State())

	// writes after close are discarded
	view.handle(bidEvent(t, auction.Bid{ID: "late", AuctionID: testAuctionID, Amount: 31_000_000, CreatedAt: time.Now()}))
	assert.Len(t, view.Bids(), 1)
}

func TestPriceHistory(t *testing.T) {
	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	bids := []auction.Bid{
		{ID: "b1", Amount: 1_000_000, CreatedAt: at},
		{ID: "b2", Amount: 1_025_000, CreatedAt: at.Add(time.Second)},
		{ID: "b3", Amount: 1_025_000, CreatedAt: at.Add(2 * time.Second)},
		{ID: "b4", Amount: 1_100_000, CreatedAt: at.Add(3 * time.Second)},
	}

	points := PriceHistory(bids)
	require.Len(t, points, 3)
	assert.Equal(t, int64(1_100_000), points[2].Price)
	assert.True(t, points[2].At.Equal(at.Add(3*time.Second)))

	assert.Empty(t, PriceHistory(nil))
}
