// Package gemini implements the evaluator for Gemini models using native
// structured output: the response schema is passed to the API and the model
// returns JSON directly.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
	loglib "github.com/hiring-bias-lab/resume-eval/internal/logger"
	"github.com/hiring-bias-lab/resume-eval/internal/prompt"
	"github.com/hiring-bias-lab/resume-eval/internal/survey"
	"github.com/hiring-bias-lab/resume-eval/internal/utils"
)

const defaultMaxLogLength = 200

// contentGenerator matches the slice of the SDK surface the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds per-client settings resolved from the application configuration.
type Config struct {
	Model        string
	APIKey       string
	Retry        ai.RetryPolicy
	MaxLogLength int
}

// Client evaluates resumes with a single Gemini model.
type Client struct {
	models    contentGenerator
	model     string
	policy    ai.RetryPolicy
	logger    *zap.Logger
	maxLogLen int
}

// New creates an evaluator for the given Gemini model.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("gemini model is required")
	}

	logger = loglib.WithCommonFields(logger, ai.ProviderGemini, model)

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		models:    client.Models,
		model:     model,
		policy:    cfg.Retry,
		logger:    logger,
		maxLogLen: maxLogLen,
	}, nil
}

func (c *Client) Provider() string { return ai.ProviderGemini }

func (c *Client) Model() string { return c.model }

// Evaluate sends the prompt and returns the raw model response.
func (c *Client) Evaluate(ctx context.Context, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.System()}}},
	}

	return ai.Retry(ctx, c.logger, c.policy, shouldRetry, func(ctx context.Context) (string, error) {
		resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
		if err != nil {
			return "", fmt.Errorf("gemini api: %w", err)
		}

		raw := collectText(resp)
		if raw == "" {
			return "", errors.New("gemini api returned empty response")
		}

		c.logger.Debug("gemini response",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
		)

		return raw, nil
	})
}

// responseSchema mirrors the per-question survey schema in the genai schema
// dialect. Array length constraints are avoided; explicit q1..q17 properties
// make the expected count unambiguous.
func responseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, survey.NumQuestions+2)
	required := make([]string, 0, survey.NumQuestions+2)

	for i := 1; i <= survey.NumQuestions; i++ {
		key := fmt.Sprintf("q%d", i)
		r, _ := survey.QuestionRange(i)
		props[key] = &genai.Schema{
			Type:        genai.TypeInteger,
			Description: fmt.Sprintf("Score for Q%d (%d-%d)", i, r.Min, r.Max),
		}
		required = append(required, key)
	}

	props["manipulation_check"] = &genai.Schema{
		Type:        genai.TypeString,
		Enum:        []string{survey.ManipulationYes, survey.ManipulationNo},
		Description: "Does the resume mention any criminal record information?",
	}
	props["thought_process"] = &genai.Schema{
		Type:        genai.TypeString,
		Description: "Brief 2-3 sentence explanation of evaluation reasoning",
	}
	required = append(required, "manipulation_check", "thought_process")

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return apierr.Code == http.StatusTooManyRequests || apierr.Code >= http.StatusInternalServerError
	}

	// Transport-level failures are worth another attempt.
	return true
}
