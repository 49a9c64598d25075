package openai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
)

type fakeResponse struct {
	resp *openaisdk.ChatCompletion
	err  error
}

type fakeCompletions struct {
	mu        sync.Mutex
	apiKey    string
	responses []fakeResponse
	params    []openaisdk.ChatCompletionNewParams
}

func (f *fakeCompletions) New(_ context.Context, body openaisdk.ChatCompletionNewParams, _ ...option.RequestOption) (*openaisdk.ChatCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, body)
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}

	res := f.responses[0]
	f.responses = f.responses[1:]
	return res.resp, res.err
}

func textCompletion(text string) *openaisdk.ChatCompletion {
	return &openaisdk.ChatCompletion{
		Choices: []openaisdk.ChatCompletionChoice{
			{Message: openaisdk.ChatCompletionMessage{Content: text}},
		},
	}
}

func newTestClient(t *testing.T, model string, keys []string, fakes map[string]*fakeCompletions) *Client {
	t.Helper()

	client, err := New(Config{
		Model:   model,
		APIKeys: keys,
		Retry:   ai.RetryPolicy{MaxRetries: 3, BaseDelay: 0, BackoffBase: 2},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.newCompletions = func(apiKey string) completionCreator {
		fake, ok := fakes[apiKey]
		if !ok {
			t.Fatalf("no fake registered for key %q", apiKey)
		}
		fake.apiKey = apiKey
		return fake
	}
	client.completions = client.newCompletions(keys[0])

	return client
}

func TestEvaluateUsesSchemaForCapableModels(t *testing.T) {
	fake := &fakeCompletions{responses: []fakeResponse{{resp: textCompletion(`{"scores": []}`)}}}
	client := newTestClient(t, "gpt-4o", []string{"key-1"}, map[string]*fakeCompletions{"key-1": fake})

	raw, err := client.Evaluate(context.Background(), "evaluate this resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw != `{"scores": []}` {
		t.Fatalf("unexpected response: %q", raw)
	}

	if len(fake.params) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.params))
	}

	params := fake.params[0]
	if params.ResponseFormat.OfJSONSchema == nil {
		t.Fatal("expected json_schema response format")
	}
	if params.ResponseFormat.OfJSONSchema.JSONSchema.Name != "evaluation_response" {
		t.Fatalf("unexpected schema name: %q", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	}
}

func TestEvaluateFallsBackToJSONInstruction(t *testing.T) {
	fake := &fakeCompletions{responses: []fakeResponse{{resp: textCompletion("{}")}}}
	client := newTestClient(t, "gpt-3.5-turbo", []string{"key-1"}, map[string]*fakeCompletions{"key-1": fake})

	if _, err := client.Evaluate(context.Background(), "evaluate this resume"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := fake.params[0]
	if params.ResponseFormat.OfJSONObject == nil {
		t.Fatal("expected json_object response format")
	}

	last := params.Messages[len(params.Messages)-1]
	content := last.OfUser.Content.OfString.Value
	if !strings.Contains(content, "IMPORTANT: You must respond in valid JSON format") {
		t.Fatal("expected JSON instruction appended to the user prompt")
	}
}

func TestEvaluateUsesDeveloperRoleForReasoningModels(t *testing.T) {
	fake := &fakeCompletions{responses: []fakeResponse{{resp: textCompletion("{}")}}}
	client := newTestClient(t, "o3-mini", []string{"key-1"}, map[string]*fakeCompletions{"key-1": fake})

	if _, err := client.Evaluate(context.Background(), "evaluate this resume"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := fake.params[0]
	if params.Messages[0].OfDeveloper == nil {
		t.Fatal("expected developer role for reasoning model")
	}
}

func TestEvaluateRotatesKeyOnQuotaError(t *testing.T) {
	exhausted := &fakeCompletions{responses: []fakeResponse{
		{err: errors.New("error 429: insufficient_quota for this key")},
	}}
	backup := &fakeCompletions{responses: []fakeResponse{{resp: textCompletion("ok")}}}

	client := newTestClient(t, "gpt-4o", []string{"key-1", "key-2"}, map[string]*fakeCompletions{
		"key-1": exhausted,
		"key-2": backup,
	})

	raw, err := client.Evaluate(context.Background(), "evaluate this resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw != "ok" {
		t.Fatalf("unexpected response: %q", raw)
	}

	if backup.apiKey != "key-2" {
		t.Fatalf("expected backup key to be used, got %q", backup.apiKey)
	}
}

func TestEvaluateFailsWhenAllKeysExhausted(t *testing.T) {
	exhausted := &fakeCompletions{responses: []fakeResponse{
		{err: errors.New("insufficient_quota")},
	}}

	client := newTestClient(t, "gpt-4o", []string{"key-1"}, map[string]*fakeCompletions{"key-1": exhausted})

	_, err := client.Evaluate(context.Background(), "evaluate this resume")
	if err == nil {
		t.Fatal("expected error when the only key is exhausted")
	}

	if !errors.Is(err, errAllKeysExhausted) {
		t.Fatalf("expected all-keys-exhausted error, got %v", err)
	}
}

func TestNewRejectsMissingKeys(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Model: "gpt-4o"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing api keys")
	}

	if _, err := New(Config{APIKeys: []string{"key"}}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing model")
	}
}
