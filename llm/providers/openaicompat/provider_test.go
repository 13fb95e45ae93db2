package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
	"github.com/DCGM/semant-demo/llm/retry"
)

func fastRetry() *retry.RetryPolicy {
	return &retry.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "llama3",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg, "type": "server_error"}}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ProviderName: "test",
		APIKey:       "sk-test",
		BaseURL:      srv.URL + "/v1",
		DefaultModel: "llama3",
		Retry:        fastRetry(),
	}, zap.NewNop())
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, nil)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, 60*time.Second, p.cfg.Timeout)
	assert.NotNil(t, p.limiter)
}

func TestCompletion_Success(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, completionBody("hello"))
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "llama3", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])

	choice, err := llm.FirstChoice(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello", choice.Message.Content)
	assert.Equal(t, llm.RoleAssistant, choice.Message.Role)
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestCompletion_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusInternalServerError, apiError("boom"))
			return
		}
		writeJSON(w, http.StatusOK, completionBody("recovered"))
	})

	text, err := llm.CompleteText(context.Background(), p, "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompletion_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  llm.ErrorCode
		wantCalls int32
	}{
		{name: "bad request", status: http.StatusBadRequest, wantCode: llm.ErrInvalidRequest, wantCalls: 1},
		{name: "unauthorized", status: http.StatusUnauthorized, wantCode: llm.ErrUnauthorized, wantCalls: 1},
		{name: "forbidden", status: http.StatusForbidden, wantCode: llm.ErrForbidden, wantCalls: 1},
		{name: "rate limited", status: http.StatusTooManyRequests, wantCode: llm.ErrRateLimited, wantCalls: 3},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantCode: llm.ErrUpstreamError, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.status, apiError("nope"))
			})

			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			var le *llm.Error
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.wantCode, le.Code)
			assert.Equal(t, tt.status, le.HTTPStatus)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestCompletion_EmptyRequest(t *testing.T) {
	p := New(Config{}, nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	var le *llm.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, llm.ErrInvalidRequest, le.Code)
}

func TestCompletion_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body := completionBody("")
		body["choices"] = []any{}
		writeJSON(w, http.StatusOK, body)
	})

	_, err := llm.CompleteText(context.Background(), p, "hi")
	var le *llm.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, llm.ErrEmptyResponse, le.Code)
}

func TestCompletion_ContextCancelled(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completionBody("late"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.CompleteText(ctx, p, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapHTTPError(t *testing.T) {
	e := MapHTTPError(http.StatusBadGateway, "bad gateway", "x")
	assert.Equal(t, llm.ErrUpstreamError, e.Code)
	assert.True(t, e.Retryable)
	assert.Equal(t, "x", e.Provider)

	e = MapHTTPError(http.StatusNotFound, "missing", "x")
	assert.Equal(t, llm.ErrInvalidRequest, e.Code)
	assert.False(t, e.Retryable)

	e = MapHTTPError(http.StatusGatewayTimeout, "slow", "x")
	assert.Equal(t, llm.ErrUpstreamTimeout, e.Code)
	assert.True(t, e.Retryable)
}
