// Package anthropic implements the evaluator for Claude models. Responses are
// requested as JSON through prompt instructions; the messages API used here
// has no server-side schema enforcement outside a beta surface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
	loglib "github.com/hiring-bias-lab/resume-eval/internal/logger"
	"github.com/hiring-bias-lab/resume-eval/internal/prompt"
	"github.com/hiring-bias-lab/resume-eval/internal/utils"
)

const (
	defaultMaxTokens    = 8192
	defaultMaxLogLength = 200
)

// messageCreator matches the slice of the SDK surface the client uses.
type messageCreator interface {
	New(ctx context.Context, body anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

// Config holds per-client settings resolved from the application configuration.
type Config struct {
	Model        string
	APIKey       string
	Retry        ai.RetryPolicy
	MaxLogLength int
}

// Client evaluates resumes with a single Claude model.
type Client struct {
	messages  messageCreator
	model     string
	policy    ai.RetryPolicy
	logger    *zap.Logger
	maxLogLen int
}

// New creates an evaluator for the given Claude model.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("anthropic model is required")
	}

	logger = loglib.WithCommonFields(logger, ai.ProviderAnthropic, model)

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(apiKey))

	return &Client{
		messages:  &client.Messages,
		model:     model,
		policy:    cfg.Retry,
		logger:    logger,
		maxLogLen: maxLogLen,
	}, nil
}

func (c *Client) Provider() string { return ai.ProviderAnthropic }

func (c *Client) Model() string { return c.model }

// Evaluate sends the prompt and returns the raw model response.
func (c *Client) Evaluate(ctx context.Context, userPrompt string) (string, error) {
	return ai.Retry(ctx, c.logger, c.policy, shouldRetry, func(ctx context.Context) (string, error) {
		resp, err := c.messages.New(ctx, anthropicsdk.MessageNewParams{
			Model:       anthropicsdk.Model(c.model),
			MaxTokens:   defaultMaxTokens,
			Temperature: anthropicsdk.Float(0),
			System: []anthropicsdk.TextBlockParam{
				{Text: prompt.System()},
			},
			Messages: []anthropicsdk.MessageParam{
				anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt + prompt.JSONInstruction())),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic api: %w", err)
		}

		if len(resp.Content) == 0 {
			return "", errors.New("anthropic api returned no content")
		}

		raw := resp.Content[0].Text
		c.logger.Debug("anthropic response",
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

	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		// 429 and 5xx cover rate limits and the 529 overloaded responses.
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= http.StatusInternalServerError
	}

	// Transport-level failures are worth another attempt.
	return true
}
