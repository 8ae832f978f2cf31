package validation

import (
	"errors"
	"strconv"
	"strings"

	bwerrors "github.com/vnykmshr/bucketwatch/pkg/common/errors"
)

// AtLeastOne parses the leading integer of input and clamps it to a minimum of 1.
// Empty, non-numeric and non-positive input all coerce to 1; "12abc" reads as 12.
func AtLeastOne(input string) int {
	n, ok := leadingInt(strings.TrimSpace(input))
	if !ok {
		return 1
	}
	return ClampMin(n, 1)
}

// ClampMin returns value or min, whichever is larger.
func ClampMin(value, min int) int {
	if value < min {
		return min
	}
	return value
}

func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// out-of-range input saturates
	return n, true
}

// ValidatePositive validates that an integer value is positive (> 0).
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return bwerrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not blank.
func ValidateNotEmpty(module, field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return bwerrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
