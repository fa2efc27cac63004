// Package gateway wraps the remote text-generation service used to
// categorize expense descriptions and to write saving tips.
//
// The gateway holds no state between calls: nothing is cached and nothing
// is retried. The credential is resolved on every call so a missing key
// fails before any network traffic.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// CredentialEnv is the environment variable holding the API key.
const CredentialEnv = "OPENAI_API_KEY"

const defaultCurrency = "INR"

var (
	ErrMissingCredential = errors.New(CredentialEnv + " not set")
	ErrEmptyResponse     = errors.New("model returned no choices")
)

// Completion is one system instruction plus one user message.
type Completion struct {
	System      string
	User        string
	Temperature float32
}

// Completer sends a completion to the remote model and returns the raw
// text of the first choice.
type Completer interface {
	Complete(ctx context.Context, apiKey string, c Completion) (string, error)
}

// CredentialFunc returns the API key to use for a call, or "" if none is
// configured.
type CredentialFunc func() string

// EnvCredential reads CredentialEnv from the process environment.
func EnvCredential() string {
	return strings.TrimSpace(os.Getenv(CredentialEnv))
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCredential overrides where the API key is read from.
func WithCredential(fn CredentialFunc) Option {
	return func(g *Gateway) { g.credential = fn }
}

// WithCurrency sets the currency label embedded in the tips prompt.
func WithCurrency(currency string) Option {
	return func(g *Gateway) {
		if strings.TrimSpace(currency) != "" {
			g.currency = currency
		}
	}
}

type Gateway struct {
	completer  Completer
	credential CredentialFunc
	currency   string
}

func New(completer Completer, opts ...Option) *Gateway {
	g := &Gateway{
		completer:  completer,
		credential: EnvCredential,
		currency:   defaultCurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) apiKey() (string, error) {
	key := ""
	if g.credential != nil {
		key = g.credential()
	}
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// Categorize classifies description into one of the fixed labels. The
// returned category is always valid: unexpected model output is replaced
// by core.FallbackCategory. Transport and API errors are returned as is.
func (g *Gateway) Categorize(ctx context.Context, description string) (core.Category, error) {
	key, err := g.apiKey()
	if err != nil {
		return "", err
	}

	raw, err := g.completer.Complete(ctx, key, categorizeCompletion(description))
	if err != nil {
		return "", fmt.Errorf("categorize expense: %w", err)
	}

	label := SanitizeLabel(raw)
	if string(label) != strings.TrimSpace(raw) {
		slog.DebugContext(ctx, "Model label replaced with fallback",
			applog.FieldComponent, applog.ComponentGateway,
			applog.FieldOperation, applog.OpCategorize,
			"raw", raw)
	}
	return label, nil
}

// Tips asks the model for 3-5 saving suggestions for the given spend
// summary. The text is returned verbatim.
func (g *Gateway) Tips(ctx context.Context, summary core.Summary) (string, error) {
	key, err := g.apiKey()
	if err != nil {
		return "", err
	}

	text, err := g.completer.Complete(ctx, key, tipsCompletion(summary, g.currency))
	if err != nil {
		return "", fmt.Errorf("generate tips: %w", err)
	}

	slog.DebugContext(ctx, "Tips generated",
		applog.FieldComponent, applog.ComponentGateway,
		applog.FieldOperation, applog.OpTips,
		"categories", len(summary),
		"length", len(text))
	return text, nil
}
