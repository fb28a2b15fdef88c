// Package autobid manages the standing auto-bid instruction of a user on an auction.
package autobid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/katatrina/gundam-live/internal/validator"
	"github.com/rs/zerolog/log"
)

var ErrControllerClosed = errors.New("auto-bid controller is closed")

// Store is the remote auto-bid store. It is authoritative: the controller never simulates
// auto-bid rounds locally.
type Store interface {
	GetAutoBid(ctx context.Context, auctionID string, userID string) (*Config, error)
	UpsertAutoBid(ctx context.Context, auctionID string, userID string, maxAmount int64) (Config, error)
	DeactivateAutoBid(ctx context.Context, auctionID string, userID string) error
}

// PriceSource returns the current bid of an auction.
type PriceSource interface {
	CurrentBid(ctx context.Context, auctionID string) (int64, error)
}

// PriceSourceFunc adapts a function to PriceSource.
type PriceSourceFunc func(ctx context.Context, auctionID string) (int64, error)

func (f PriceSourceFunc) CurrentBid(ctx context.Context, auctionID string) (int64, error) {
	return f(ctx, auctionID)
}

type entry struct {
	state  State
	config *Config
}

// Controller is owned by one view. After Close, responses of calls still in flight are
// dropped instead of being applied.
type Controller struct {
	store  Store
	prices PriceSource

	mu         sync.Mutex
	entries    map[string]entry
	generation uint64
	closed     bool
}

func NewController(store Store, prices PriceSource) *Controller {
	return &Controller{
		store:   store,
		prices:  prices,
		entries: make(map[string]entry),
	}
}

func entryKey(auctionID, userID string) string {
	return auctionID + "/" + userID
}

// State returns the last known state without a remote call.
func (c *Controller) State(auctionID, userID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[entryKey(auctionID, userID)]
	if !ok {
		return StateNotConfigured
	}
	return e.state
}

// Config returns the last known config, or nil when none is active.
func (c *Controller) Config(auctionID, userID string) *Config {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[entryKey(auctionID, userID)]
	if e.config == nil {
		return nil
	}
	config := *e.config
	return &config
}

// Load fetches the auto-bid from the store. No auto-bid is the NotConfigured state, not an error.
func (c *Controller) Load(ctx context.Context, auctionID, userID string) (State, error) {
	generation, err := c.begin()
	if err != nil {
		return StateNotConfigured, err
	}

	config, err := c.store.GetAutoBid(ctx, auctionID, userID)
	if err != nil {
		return c.State(auctionID, userID), fmt.Errorf("failed to load auto-bid: %w", err)
	}

	state := StateNotConfigured
	if config != nil && config.IsActive {
		state = StateActive
	} else {
		config = nil
	}

	if !c.commit(generation, auctionID, userID, entry{state: state, config: config}) {
		return StateNotConfigured, ErrControllerClosed
	}
	return state, nil
}

// ActivateOrUpdate validates maxAmount against the live current bid and, only when it is valid,
// stores it remotely. The first activation ends in Active, a ceiling change in Updated.
// A successful call does not imply a price change: the server bids asynchronously and the
// result arrives on the bid stream.
func (c *Controller) ActivateOrUpdate(ctx context.Context, auctionID, userID string, maxAmount float64) (Config, error) {
	generation, err := c.begin()
	if err != nil {
		return Config{}, err
	}

	currentBid, err := c.prices.CurrentBid(ctx, auctionID)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get current bid: %w", err)
	}

	ceiling, err := validator.ValidateAutoBidCeiling(maxAmount, currentBid)
	if err != nil {
		return Config{}, err
	}

	config, err := c.store.UpsertAutoBid(ctx, auctionID, userID, ceiling)
	if err != nil {
		return Config{}, fmt.Errorf("failed to activate auto-bid: %w", err)
	}

	next := StateActive
	switch c.State(auctionID, userID) {
	case StateActive, StateUpdated:
		next = StateUpdated
	}

	if !c.commit(generation, auctionID, userID, entry{state: next, config: &config}) {
		return Config{}, ErrControllerClosed
	}
	return config, nil
}

// Deactivate turns the auto-bid off. Deactivating an inactive auto-bid is not an error.
func (c *Controller) Deactivate(ctx context.Context, auctionID, userID string) error {
	generation, err := c.begin()
	if err != nil {
		return err
	}

	if err = c.store.DeactivateAutoBid(ctx, auctionID, userID); err != nil {
		return fmt.Errorf("failed to deactivate auto-bid: %w", err)
	}

	if !c.commit(generation, auctionID, userID, entry{state: StateDeactivated}) {
		return ErrControllerClosed
	}
	// Deactivated is transient
	c.commit(generation, auctionID, userID, entry{state: StateNotConfigured})
	return nil
}

// Close detaches the controller from its view.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.generation++
}

func (c *Controller) begin() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrControllerClosed
	}
	return c.generation, nil
}

func (c *Controller) commit(generation uint64, auctionID, userID string, next entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || generation != c.generation {
		log.Debug().
			Str("auction_id", auctionID).
			Str("user_id", userID).
			Msg("auto-bid response arrived after close, discarding")
		return false
	}

	key := entryKey(auctionID, userID)
	previous := c.entries[key].state
	if previous == "" {
		previous = StateNotConfigured
	}
	c.entries[key] = next

	if previous != next.state {
		log.Info().
			Str("auction_id", auctionID).
			Str("user_id", userID).
			Str("old_state", string(previous)).
			Str("new_state", string(next.state)).
			Msg("auto-bid state changed")
	}
	return true
}
