// Package mocks 提供协作者测试用的模拟 LLM、嵌入与检索实现。
package mocks

import (
	"context"
	"sync"

	"github.com/DCGM/semant-demo/llm"
)

// MockProvider 可编排的 llm.Provider：固定回复、按提示词回复或固定错误
type MockProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	byPrompt func(prompt string) (string, error)
	calls    []MockProviderCall
}

// MockProviderCall 一次 Completion 调用的请求与结果
type MockProviderCall struct {
	Request *llm.ChatRequest
	Reply   string
	Error   error
}

// Prompt 请求中最后一条消息，即渲染后的提示词
func (c MockProviderCall) Prompt() string {
	if c.Request == nil || len(c.Request.Messages) == 0 {
		return ""
	}
	return c.Request.Messages[len(c.Request.Messages)-1].Content
}

// NewMockProvider 默认回复 "Mock response"
func NewMockProvider() *MockProvider {
	return &MockProvider{reply: "Mock response"}
}

// NewSuccessProvider 总是返回 reply
func NewSuccessProvider(reply string) *MockProvider {
	return NewMockProvider().WithResponse(reply)
}

// NewErrorProvider 总是返回 err
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

func (m *MockProvider) WithResponse(reply string) *MockProvider {
	m.mu.Lock()
	m.reply = reply
	m.mu.Unlock()
	return m
}

func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return m
}

// WithPromptFunc 按提示词决定回复；优先于 WithResponse，低于 WithError
func (m *MockProvider) WithPromptFunc(fn func(prompt string) (string, error)) *MockProvider {
	m.mu.Lock()
	m.byPrompt = fn
	m.mu.Unlock()
	return m
}

func (m *MockProvider) Name() string { return "mock" }

// Completion 记录调用并按配置回复；ctx 已取消时直接返回 ctx.Err()
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	call := MockProviderCall{Request: req}
	switch {
	case m.err != nil:
		call.Error = m.err
	case m.byPrompt != nil:
		call.Reply, call.Error = m.byPrompt(call.Prompt())
	default:
		call.Reply = m.reply
	}
	m.calls = append(m.calls, call)

	if call.Error != nil {
		return nil, call.Error
	}
	return &llm.ChatResponse{
		ID:       "mock-response",
		Provider: "mock",
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: call.Reply},
		}},
	}, nil
}

// GetCallCount Completion 被调用的次数
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall 最近一次调用；尚未调用时为 nil
func (m *MockProvider) GetLastCall() *MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}
