package analyst

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

type stubBackend struct {
	text   string
	err    error
	prompt string
}

func (s *stubBackend) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func TestAnalyze_ParsesBackendOutput(t *testing.T) {
	b := &stubBackend{text: cleanJSON}
	a := New(b)

	got, err := a.Analyze(context.Background(), event.Finding{Author: "Jane D.", Rating: 2, Text: "slow"}, "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, event.SentimentNegative, got.Classification.Sentiment)
	assert.Contains(t, b.prompt, `"Acme"`)
	assert.Contains(t, b.prompt, "Rating: 2/5")
	assert.NotContains(t, b.prompt, "Previous feedback")
}

func TestAnalyze_MalformedOutputIsNotAnError(t *testing.T) {
	a := New(&stubBackend{text: "sorry, I am unable to produce JSON"})
	got, err := a.Analyze(context.Background(), event.Finding{Rating: 1}, "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, -8, got.Classification.CredibilityImpact)
}

func TestAnalyze_HardFailuresPropagate(t *testing.T) {
	backendErr := &BackendError{StatusCode: 500, Message: "upstream"}
	for _, want := range []error{ErrMissingCredential, backendErr} {
		a := New(&stubBackend{err: want})
		_, err := a.Analyze(context.Background(), event.Finding{Rating: 5}, "Acme", nil)
		assert.ErrorIs(t, err, want)
	}
}

func TestBuildPrompt_FeedbackWindow(t *testing.T) {
	var fb []event.FeedbackEntry
	for i := 0; i < 7; i++ {
		fb = append(fb, event.FeedbackEntry{
			EventID:  "e",
			Feedback: event.FeedbackRejected,
			Original: "draft-" + string(rune('A'+i)),
		})
	}
	fb[6].Feedback = event.FeedbackAccepted
	fb[6].Modified = "better draft"

	p := BuildPrompt(event.Finding{Author: "A", Rating: 4, Text: "t"}, "Acme", fb)

	assert.Contains(t, p, "Previous feedback on your drafted responses")
	assert.NotContains(t, p, `"draft-A"`)
	assert.NotContains(t, p, `"draft-B"`)
	for _, d := range []string{"draft-C", "draft-D", "draft-E", "draft-F", "draft-G"} {
		assert.Contains(t, p, `"`+d+`"`)
	}
	assert.Contains(t, p, `You drafted: "draft-G" → Operator accepted and changed to: "better draft"`)
	assert.Contains(t, p, `You drafted: "draft-C" → Operator rejected`)
	assert.Equal(t, 5, strings.Count(p, "You drafted:"))
}

func TestOpenAIBackend_MissingCredential(t *testing.T) {
	b := NewOpenAIBackend(OpenAIConfig{})
	_, err := b.Complete(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestOpenAIBackend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion", "created": 1700000000, "model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"ok\": true}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"})
	text, err := b.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, text)
}

func TestOpenAIBackend_Non2xxIsHardFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := b.Complete(context.Background(), "prompt")

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusServiceUnavailable, be.StatusCode)
	assert.Equal(t, 1, calls, "backend must not be retried")
}
