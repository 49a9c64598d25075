package anthropic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
)

type fakeResponse struct {
	resp *anthropicsdk.Message
	err  error
}

type fakeMessages struct {
	mu        sync.Mutex
	responses []fakeResponse
	params    []anthropicsdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, body anthropicsdk.MessageNewParams, _ ...option.RequestOption) (*anthropicsdk.Message, error) {
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

func textMessage(text string) *anthropicsdk.Message {
	return &anthropicsdk.Message{
		Content: []anthropicsdk.ContentBlockUnion{{Text: text}},
	}
}

func newTestClient(t *testing.T, fake *fakeMessages) *Client {
	t.Helper()

	client, err := New(Config{
		Model:  "claude-sonnet-4-20250514",
		APIKey: "key",
		Retry:  ai.RetryPolicy{MaxRetries: 3, BaseDelay: 0, BackoffBase: 2},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.messages = fake
	return client
}

func TestEvaluateAppendsJSONInstruction(t *testing.T) {
	fake := &fakeMessages{responses: []fakeResponse{{resp: textMessage(`{"scores": []}`)}}}
	client := newTestClient(t, fake)

	raw, err := client.Evaluate(context.Background(), "evaluate this resume")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw != `{"scores": []}` {
		t.Fatalf("unexpected response: %q", raw)
	}

	params := fake.params[0]
	if len(params.System) != 1 || params.System[0].Text == "" {
		t.Fatal("expected system prompt to be set")
	}

	content := params.Messages[0].Content[0].OfText.Text
	if !strings.Contains(content, "evaluate this resume") {
		t.Fatal("expected user prompt in message")
	}
	if !strings.Contains(content, "IMPORTANT: You must respond in valid JSON format") {
		t.Fatal("expected JSON instruction appended")
	}
}

func TestEvaluateRetriesOnOverload(t *testing.T) {
	overloaded := &anthropicsdk.Error{StatusCode: 529}

	fake := &fakeMessages{responses: []fakeResponse{
		{err: overloaded},
		{resp: textMessage("ok")},
	}}
	client := newTestClient(t, fake)

	raw, err := client.Evaluate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw != "ok" {
		t.Fatalf("unexpected response: %q", raw)
	}

	if len(fake.params) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fake.params))
	}
}

func TestEvaluateFailsOnEmptyContent(t *testing.T) {
	fake := &fakeMessages{responses: []fakeResponse{
		{resp: &anthropicsdk.Message{}},
		{resp: &anthropicsdk.Message{}},
		{resp: &anthropicsdk.Message{}},
	}}
	client := newTestClient(t, fake)

	if _, err := client.Evaluate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Model: "claude-3-5-haiku-20241022"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing api key")
	}

	if _, err := New(Config{APIKey: "key"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing model")
	}
}
