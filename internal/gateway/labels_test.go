package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/core"
)

func TestSanitizeLabel(t *testing.T) {
	for _, c := range core.Categories() {
		assert.Equal(t, c, SanitizeLabel(string(c)), "exact label %q must pass through", c)
	}

	// Surrounding whitespace is trimmed before matching.
	assert.Equal(t, core.Food, SanitizeLabel("  Food\n"))

	for _, raw := range []string{
		"",
		"   ",
		"food",
		"FOOD",
		"Food.",
		"Transport!",
		"Category: Food",
		"The category is Food",
		"Groceries",
		"Food, Shopping",
	} {
		assert.Equal(t, core.Other, SanitizeLabel(raw), "%q", raw)
	}
}
