package services

import (
	"fmt"
)

// Shared rendering policy for the presentation adapters: prices to two
// decimal places, deltas always signed, unknown prices spelled out instead
// of rendered as zero.

// FormatPrice renders a known price.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// FormatOptionalPrice renders an unknown price as "not available", never 0.
func FormatOptionalPrice(price *float64) string {
	if price == nil {
		return "not available"
	}
	return FormatPrice(*price)
}

// FormatChange renders a delta with an explicit sign. A nil delta renders as
// no change; callers that must distinguish "unknown" from a true zero should
// branch on nil before calling.
func FormatChange(delta *float64) string {
	if delta == nil {
		return "+0.00"
	}
	return FormatChangeValue(*delta)
}

// FormatChangeValue renders a known delta, `+` for non-negative.
func FormatChangeValue(delta float64) string {
	return fmt.Sprintf("%+.2f", delta)
}
