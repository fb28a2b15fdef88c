package validator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateUUID checks that value is a canonical UUID (auction IDs are UUIDs on the backend).
func ValidateUUID(value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("invalid %q format", value)
	}
	return nil
}

// ValidateIdentifier checks an opaque identifier such as a user ID or a dispute ID.
func ValidateIdentifier(value string, maxLength int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(value) > maxLength {
		return fmt.Errorf("must contain at most %d characters", maxLength)
	}
	if strings.ContainsAny(value, "/?#") {
		return fmt.Errorf("must not contain '/', '?' or '#'")
	}
	return nil
}
