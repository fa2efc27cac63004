package gateway

import (
	"strings"

	"fintrack/internal/core"
)

// SanitizeLabel maps a raw model response onto the fixed label set.
// Surrounding whitespace is ignored; anything that is not then exactly one
// of the allowed labels (case included) becomes core.FallbackCategory.
func SanitizeLabel(raw string) core.Category {
	c := core.Category(strings.TrimSpace(raw))
	if c.IsValid() {
		return c
	}
	return core.FallbackCategory
}
