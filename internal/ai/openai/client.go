// Package openai implements the evaluator for OpenAI chat models, including
// the study's key rotation: when a key runs out of quota the client switches
// to the next configured key and retries.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
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

const defaultMaxLogLength = 200

// Models that accept the strict json_schema response format.
var schemaSupportModels = map[string]bool{
	"gpt-4o":       true,
	"gpt-4o-mini":  true,
	"gpt-4.1":      true,
	"gpt-4.1-mini": true,
	"gpt-5.1":      true,
	"o1":           true,
	"o3-mini":      true,
	"o4-mini":      true,
}

// Models that take the developer role and max_completion_tokens instead of
// the legacy system role and max_tokens.
var developerRoleModels = map[string]bool{
	"gpt-5.1": true,
	"o1":      true,
	"o3-mini": true,
	"o4-mini": true,
}

var errAllKeysExhausted = errors.New("all openai api keys exhausted")

// completionCreator matches the slice of the SDK surface the client uses.
type completionCreator interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

func newCompletions(apiKey string) completionCreator {
	client := openaisdk.NewClient(option.WithAPIKey(apiKey))
	return &client.Chat.Completions
}

// Config holds per-client settings resolved from the application configuration.
type Config struct {
	Model        string
	APIKeys      []string
	Retry        ai.RetryPolicy
	MaxLogLength int
}

// Client evaluates resumes with a single OpenAI model.
type Client struct {
	model     string
	policy    ai.RetryPolicy
	logger    *zap.Logger
	maxLogLen int

	mu          sync.Mutex
	keys        []string
	keyIndex    int
	rotations   int
	completions completionCreator

	// newCompletions is a seam for tests.
	newCompletions func(apiKey string) completionCreator
}

// New creates an evaluator for the given OpenAI model.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one openai api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai model is required")
	}

	logger = loglib.WithCommonFields(logger, ai.ProviderOpenAI, model)

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	c := &Client{
		model:          model,
		policy:         cfg.Retry,
		logger:         logger,
		maxLogLen:      maxLogLen,
		keys:           keys,
		newCompletions: newCompletions,
	}
	c.completions = c.newCompletions(keys[0])

	return c, nil
}

func (c *Client) Provider() string { return ai.ProviderOpenAI }

func (c *Client) Model() string { return c.model }

// Evaluate sends the prompt and returns the raw model response.
func (c *Client) Evaluate(ctx context.Context, userPrompt string) (string, error) {
	return ai.Retry(ctx, c.logger, c.policy, c.shouldRetry, func(ctx context.Context) (string, error) {
		raw, err := c.complete(ctx, userPrompt)
		if err == nil {
			c.logger.Debug("openai response",
				zap.Int("response_length", utf8.RuneCountInString(raw)),
				zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
			)
			return raw, nil
		}

		if errors.Is(err, ai.ErrQuotaExhausted) {
			if !c.switchKey() {
				return "", fmt.Errorf("%w: %s", errAllKeysExhausted, err)
			}
			return "", err
		}

		return "", err
	})
}

func (c *Client) complete(ctx context.Context, userPrompt string) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
	}

	useSchema := schemaSupportModels[c.model]

	if developerRoleModels[c.model] {
		params.Messages = []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.DeveloperMessage(prompt.System()),
			openaisdk.UserMessage(userPrompt),
		}
		if c.model == "gpt-5.1" {
			params.MaxCompletionTokens = openaisdk.Int(4096)
		}
	} else {
		params.Messages = []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(prompt.System()),
			openaisdk.UserMessage(userPrompt),
		}
		params.Temperature = openaisdk.Float(0)
		params.MaxTokens = openaisdk.Int(4096)
	}

	if useSchema {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "evaluation_response",
					Strict: openaisdk.Bool(true),
					Schema: survey.ResponseSchema(),
				},
			},
		}
	} else {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
		params.Messages[len(params.Messages)-1] = openaisdk.UserMessage(userPrompt + prompt.JSONInstruction())
	}

	resp, err := c.currentCompletions().New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai api returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) currentCompletions() completionCreator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completions
}

// switchKey advances to the next configured API key. It reports false once
// every backup key has been consumed.
func (c *Client) switchKey() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rotations >= len(c.keys)-1 {
		return false
	}

	c.rotations++
	c.keyIndex = (c.keyIndex + 1) % len(c.keys)
	c.completions = c.newCompletions(c.keys[c.keyIndex])

	c.logger.Warn("openai api key exhausted, switched to backup key",
		zap.Int("key_index", c.keyIndex+1),
		zap.Int("keys_total", len(c.keys)),
	)

	return true
}

// classify maps SDK errors onto the quota sentinel so Evaluate can rotate keys.
func (c *Client) classify(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "billing_hard_limit_reached") {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExhausted, err)
	}
	return fmt.Errorf("openai api: %w", err)
}

func (c *Client) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errAllKeysExhausted) {
		return false
	}
	if errors.Is(err, ai.ErrQuotaExhausted) {
		// A backup key was installed; try again immediately on the next attempt.
		return true
	}

	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= http.StatusInternalServerError
	}

	// Transport-level failures are worth another attempt.
	return true
}
