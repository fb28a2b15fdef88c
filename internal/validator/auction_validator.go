// internal/validator/auction_validator.go
package validator

import (
	"math"

	"github.com/katatrina/gundam-live/internal/apperror"
	"github.com/katatrina/gundam-live/internal/auction"
	"github.com/katatrina/gundam-live/internal/util"
)

// ValidateAutoBidCeiling validates a new auto-bid ceiling against the current bid.
// It uses the same increment table as the display, so the two can never disagree.
// The returned amount is the ceiling rounded to whole đồng.
func ValidateAutoBidCeiling(maxAmount float64, currentBid int64) (int64, error) {
	if math.IsNaN(maxAmount) || math.IsInf(maxAmount, 0) {
		return 0, apperror.NewValidationError("max_amount", "must be a finite number")
	}
	if maxAmount <= 0 {
		return 0, apperror.NewValidationError("max_amount", "must be greater than 0, provided: %.0f", maxAmount)
	}
	if maxAmount > math.MaxInt64/2 {
		return 0, apperror.NewValidationError("max_amount", "is too large, provided: %.0f", maxAmount)
	}

	ceiling := int64(math.Round(maxAmount))
	if ceiling <= currentBid {
		return 0, apperror.NewValidationError("max_amount",
			"must be greater than the current bid %s, provided: %s",
			util.FormatMoney(currentBid), util.FormatMoney(ceiling))
	}

	minCeiling := auction.MinNextBid(currentBid)
	if ceiling < minCeiling {
		return 0, apperror.NewValidationError("max_amount",
			"must be at least %s (current bid %s + increment %s), provided: %s",
			util.FormatMoney(minCeiling),
			util.FormatMoney(currentBid),
			util.FormatMoney(auction.IncrementFor(currentBid)),
			util.FormatMoney(ceiling))
	}

	return ceiling, nil
}
