package autobid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAuctionID = "0b3a1c4e-6d1f-4b8e-9c55-1f2d3e4a5b6c"
	testUserID    = "user-1"
)

type fakeStore struct {
	mu      sync.Mutex
	config  *Config
	upserts []int64
	deletes int
	err     error

	// blocks UpsertAutoBid until closed, when set
	release chan struct{}
}

func (s *fakeStore) GetAutoBid(_ context.Context, auctionID string, userID string) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if s.config == nil {
		return nil, nil
	}
	config := *s.config
	return &config, nil
}

func (s *fakeStore) UpsertAutoBid(_ context.Context, auctionID string, userID string, maxAmount int64) (Config, error) {
	if s.release != nil {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upserts = append(s.upserts, maxAmount)
	if s.err != nil {
		return Config{}, s.err
	}
	s.config = &Config{
		ID:        "ab-1",
		AuctionID: auctionID,
		UserID:    userID,
		MaxAmount: maxAmount,
		IsActive:  true,
		UpdatedAt: time.Now(),
	}
	return *s.config, nil
}

func (s *fakeStore) DeactivateAutoBid(_ context.Context, auctionID string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes++
	if s.err != nil {
		return s.err
	}
	s.config = nil
	return nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func fixedPrice(price int64) PriceSource {
	return PriceSourceFunc(func(context.Context, string) (int64, error) {
		return price, nil
	})
}

func TestActivateOrUpdateRejectsLowCeilingWithoutRemoteCall(t *testing.T) {
	for _, maxAmount := range []float64{0, 1_000, 29_999_999, 30_000_000, 30_600_000} {
		store := &fakeStore{}
		controller := NewController(store, fixedPrice(30_000_000))

		_, err := controller.ActivateOrUpdate(context.Background(), testAuctionID, testUserID, maxAmount)

		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err), "max amount %.0f", maxAmount)
		assert.Zero(t, store.upsertCount())
		assert.Equal(t, StateNotConfigured, controller.State(testAuctionID, testUserID))
	}
}

func TestAutoBidLifecycle(t *testing.T) {
	store := &fakeStore{}
	controller := NewController(store, fixedPrice(30_000_000))
	ctx := context.Background()

	state, err := controller.Load(ctx, testAuctionID, testUserID)
	require.NoError(t, err)
	assert.Equal(t, StateNotConfigured, state)
	assert.Nil(t, controller.Config(testAuctionID, testUserID))

	config, err := controller.ActivateOrUpdate(ctx, testAuctionID, testUserID, 35_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(35_000_000), config.MaxAmount)
	assert.Equal(t, StateActive, controller.State(testAuctionID, testUserID))

	_, err = controller.ActivateOrUpdate(ctx, testAuctionID, testUserID, 40_000_000)
	require.NoError(t, err)
	assert.Equal(t, StateUpdated, controller.State(testAuctionID, testUserID))
	require.NotNil(t, controller.Config(testAuctionID, testUserID))
	assert.Equal(t, int64(40_000_000), controller.Config(testAuctionID, testUserID).MaxAmount)

	require.NoError(t, controller.Deactivate(ctx, testAuctionID, testUserID))
	assert.Equal(t, StateNotConfigured, controller.State(testAuctionID, testUserID))
	assert.Nil(t, controller.Config(testAuctionID, testUserID))

	// deactivating twice is not an error
	require.NoError(t, controller.Deactivate(ctx, testAuctionID, testUserID))
	assert.Equal(t, []int64{35_000_000, 40_000_000}, store.upserts)
	assert.Equal(t, 2, store.deletes)
}

func TestLoadExistingAutoBid(t *testing.T) {
	store := &fakeStore{config: &Config{ID: "ab-1", MaxAmount: 50_000_000, IsActive: true}}
	controller := NewController(store, fixedPrice(30_000_000))

	state, err := controller.Load(context.Background(), testAuctionID, testUserID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)

	// changing the ceiling of a loaded auto-bid is an update
	_, err = controller.ActivateOrUpdate(context.Background(), testAuctionID, testUserID, 45_000_000)
	require.NoError(t, err)
	assert.Equal(t, StateUpdated, controller.State(testAuctionID, testUserID))
}

func TestLoadInactiveAutoBidIsNotConfigured(t *testing.T) {
	store := &fakeStore{config: &Config{ID: "ab-1", MaxAmount: 50_000_000, IsActive: false}}
	controller := NewController(store, fixedPrice(30_000_000))

	state, err := controller.Load(context.Background(), testAuctionID, testUserID)
	require.NoError(t, err)
	assert.Equal(t, StateNotConfigured, state)
	assert.Nil(t, controller.Config(testAuctionID, testUserID))
}

func TestRemoteRejectionKeepsState(t *testing.T) {
	rejection := &apperror.RemoteRejection{StatusCode: 409, Reason: "price changed"}
	store := &fakeStore{}
	controller := NewController(store, fixedPrice(30_000_000))

	store.err = rejection
	_, err := controller.ActivateOrUpdate(context.Background(), testAuctionID, testUserID, 35_000_000)

	got, ok := apperror.IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "price changed", got.Reason)
	assert.Equal(t, StateNotConfigured, controller.State(testAuctionID, testUserID))
}

func TestPriceSourceFailure(t *testing.T) {
	store := &fakeStore{}
	controller := NewController(store, PriceSourceFunc(func(context.Context, string) (int64, error) {
		return 0, apperror.ErrTimeout
	}))

	_, err := controller.ActivateOrUpdate(context.Background(), testAuctionID, testUserID, 35_000_000)
	assert.True(t, errors.Is(err, apperror.ErrTimeout))
	assert.Zero(t, store.upsertCount())
}

func TestResponseAfterCloseIsDiscarded(t *testing.T) {
	store := &fakeStore{release: make(chan struct{})}
	controller := NewController(store, fixedPrice(30_000_000))

	errCh := make(chan error, 1)
	go func() {
		_, err := controller.ActivateOrUpdate(context.Background(), testAuctionID, testUserID, 35_000_000)
		errCh <- err
	}()

	controller.Close()
	close(store.release)

	err := <-errCh
	assert.ErrorIs(t, err, ErrControllerClosed)
	assert.Equal(t, StateNotConfigured, controller.State(testAuctionID, testUserID))

	_, err = controller.Load(context.Background(), testAuctionID, testUserID)
	assert.ErrorIs(t, err, ErrControllerClosed)
}
