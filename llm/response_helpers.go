package llm

import (
	"context"
	"fmt"
	"strings"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, &Error{
			Code:    ErrEmptyResponse,
			Message: "empty choices in ChatResponse (model returned no choices)",
		}
	}
	return resp.Choices[0], nil
}

// CompleteText sends a single user prompt and returns the trimmed text of the
// first choice.
func CompleteText(ctx context.Context, p Provider, prompt string, opts ...RequestOption) (string, error) {
	req := &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := p.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(choice.Message.Content), nil
}

// RequestOption mutates a ChatRequest built by CompleteText.
type RequestOption func(*ChatRequest)

// WithJSONMode asks the provider for a JSON object response.
func WithJSONMode() RequestOption {
	return func(r *ChatRequest) { r.JSONMode = true }
}

// WithSystemPrompt prepends a system message.
func WithSystemPrompt(content string) RequestOption {
	return func(r *ChatRequest) {
		r.Messages = append([]Message{{Role: RoleSystem, Content: content}}, r.Messages...)
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) RequestOption {
	return func(r *ChatRequest) { r.MaxTokens = n }
}
