package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]Expense{
		{Category: "Food", Amount: 0.1},
		{Category: "Food", Amount: 0.2},
		{Category: "Transport", Amount: 5},
		{Category: "Bills", Amount: 5},
	})
	assert.Equal(t, 0.3, s["Food"])
	assert.Equal(t, 5.0, s["Transport"])
	assert.Len(t, s, 3)
	assert.Equal(t, 10.3, s.Total())

	sorted := s.Sorted()
	assert.Equal(t, []CategoryAmount{
		{Name: "Bills", Amount: 5},
		{Name: "Transport", Amount: 5},
		{Name: "Food", Amount: 0.3},
	}, sorted)

	assert.Equal(t, "Bills: 5.00, Transport: 5.00, Food: 0.30", s.String())
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Empty(t, s)
	assert.Empty(t, s.Sorted())
	assert.Equal(t, "", s.String())
}
