// Package mistral implements the evaluator for Mistral models. Mistral's chat
// API is OpenAI-compatible, so the client reuses the openai-go SDK against
// api.mistral.ai. Schema enforcement uses the per-question response schema:
// Mistral honors numeric bounds but not array length constraints.
package mistral

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
	loglib "github.com/hiring-bias-lab/resume-eval/internal/logger"
	"github.com/hiring-bias-lab/resume-eval/internal/prompt"
	"github.com/hiring-bias-lab/resume-eval/internal/survey"
	"github.com/hiring-bias-lab/resume-eval/internal/utils"
)

const (
	defaultBaseURL      = "https://api.mistral.ai/v1/"
	defaultMaxLogLength = 200
)

// completionCreator matches the slice of the SDK surface the client uses.
type completionCreator interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

// Config holds per-client settings resolved from the application configuration.
type Config struct {
	Model        string
	APIKey       string
	BaseURL      string
	Retry        ai.RetryPolicy
	MaxLogLength int
}

// Client evaluates resumes with a single Mistral model.
type Client struct {
	completions completionCreator
	model       string
	policy      ai.RetryPolicy
	logger      *zap.Logger
	maxLogLen   int
}

// New creates an evaluator for the given Mistral model.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("mistral api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("mistral model is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger = loglib.WithCommonFields(logger, ai.ProviderMistral, model)

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	client := openaisdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)

	return &Client{
		completions: &client.Chat.Completions,
		model:       model,
		policy:      cfg.Retry,
		logger:      logger,
		maxLogLen:   maxLogLen,
	}, nil
}

func (c *Client) Provider() string { return ai.ProviderMistral }

func (c *Client) Model() string { return c.model }

// Evaluate sends the prompt and returns the raw model response. The system
// prompt is folded into the user message; Mistral models follow it reliably
// and it keeps the request shape identical across their model family.
func (c *Client) Evaluate(ctx context.Context, userPrompt string) (string, error) {
	return ai.Retry(ctx, c.logger, c.policy, shouldRetry, func(ctx context.Context) (string, error) {
		resp, err := c.completions.New(ctx, openaisdk.ChatCompletionNewParams{
			Model:       openaisdk.ChatModel(c.model),
			Temperature: openaisdk.Float(0),
			MaxTokens:   openaisdk.Int(4096),
			Messages: []openaisdk.ChatCompletionMessageParamUnion{
				openaisdk.UserMessage(prompt.System() + "\n\n" + userPrompt),
			},
			ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   "evaluation_response",
						Strict: openaisdk.Bool(true),
						Schema: survey.PerQuestionResponseSchema(),
					},
				},
			},
		})
		if err != nil {
			return "", fmt.Errorf("mistral api: %w", err)
		}

		if len(resp.Choices) == 0 {
			return "", errors.New("mistral api returned no choices")
		}

		raw := resp.Choices[0].Message.Content
		c.logger.Debug("mistral response",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
		)

		return raw, nil
	})
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	// Transport-level failures are worth another attempt.
	return true
}
