package gateway

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const (
	categorizeTemperature float32 = 0
	tipsTemperature       float32 = 0.4

	tipsSystemPrompt = "You analyze monthly spending and give concise, practical tips. " +
		"Use bullet points. Avoid generic advice; be specific to the data."
)

func categorizeCompletion(description string) Completion {
	return Completion{
		System:      "You are an expense categorizer. Return ONLY one of: " + strings.Join(core.CategoryNames(), ", ") + ".",
		User:        fmt.Sprintf("Expense: %s\nCategory:", description),
		Temperature: categorizeTemperature,
	}
}

func tipsCompletion(summary core.Summary, currency string) Completion {
	return Completion{
		System:      tipsSystemPrompt,
		User:        fmt.Sprintf("Monthly spend by category (%s): %s. Provide 3-5 tips.", currency, summary),
		Temperature: tipsTemperature,
	}
}
