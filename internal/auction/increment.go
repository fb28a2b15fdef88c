package auction

import "sort"

// IncrementTier is one row of the bid increment table: every price at or above LowerBound
// (and below the next tier) must be outbid by at least Step.
type IncrementTier struct {
	LowerBound int64 `json:"lower_bound"`
	Step       int64 `json:"step"`
}

// Bảng bước giá (VND). Bound và step tăng dần nghiêm ngặt.
var incrementTable = [...]IncrementTier{
	{LowerBound: 0, Step: 1_250},
	{LowerBound: 25_000, Step: 6_250},
	{LowerBound: 125_000, Step: 12_500},
	{LowerBound: 625_000, Step: 25_000},
	{LowerBound: 2_500_000, Step: 62_500},
	{LowerBound: 6_250_000, Step: 125_000},
	{LowerBound: 12_500_000, Step: 250_000},
	{LowerBound: 25_000_000, Step: 625_000},
	{LowerBound: 62_500_000, Step: 1_250_000},
	{LowerBound: 125_000_000, Step: 2_500_000},
}

// Tiers returns a copy of the increment table, lowest tier first.
func Tiers() []IncrementTier {
	tiers := make([]IncrementTier, len(incrementTable))
	copy(tiers, incrementTable[:])
	return tiers
}

// IncrementFor returns the minimum legal bid step at price.
// Negative prices are clamped to the lowest tier.
func IncrementFor(price int64) int64 {
	return tierFor(price).Step
}

// MinNextBid is the smallest bid accepted on top of currentBid.
func MinNextBid(currentBid int64) int64 {
	return currentBid + IncrementFor(currentBid)
}

func tierFor(price int64) IncrementTier {
	if price < 0 {
		price = 0
	}

	// first tier whose bound is above price, the one before it is the match
	i := sort.Search(len(incrementTable), func(i int) bool {
		return incrementTable[i].LowerBound > price
	})
	return incrementTable[i-1]
}
