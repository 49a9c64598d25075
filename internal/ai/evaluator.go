package ai

import (
	"context"
	"errors"
)

// Provider names used in configuration, logging and output paths.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
	ProviderGemini    = "gemini"
)

// ErrQuotaExhausted marks quota/billing failures. The OpenAI client rotates
// to its next configured API key when an underlying call fails with it.
var ErrQuotaExhausted = errors.New("api quota exhausted")

// Evaluator sends the evaluation prompt to one model of one provider and
// returns the raw textual response. Parsing happens upstream so every
// provider can be treated uniformly.
type Evaluator interface {
	Evaluate(ctx context.Context, userPrompt string) (string, error)
	Provider() string
	Model() string
}
