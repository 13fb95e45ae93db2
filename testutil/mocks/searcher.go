package mocks

import (
	"context"
	"sync"

	"github.com/DCGM/semant-demo/rag"
)

// MockSearcher 是 rag.DocumentSearcher 的模拟实现
type MockSearcher struct {
	mu sync.Mutex

	docs       []rag.Document
	err        error
	searchFunc func(ctx context.Context, query string, k int) ([]rag.Document, error)

	queries    []string
	closeCount int
}

// NewMockSearcher 创建返回固定文档的 MockSearcher
func NewMockSearcher(docs ...rag.Document) *MockSearcher {
	return &MockSearcher{docs: docs}
}

// WithError 设置检索错误
func (m *MockSearcher) WithError(err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithSearchFunc 设置自定义检索函数
func (m *MockSearcher) WithSearchFunc(fn func(ctx context.Context, query string, k int) ([]rag.Document, error)) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchFunc = fn
	return m
}

func (m *MockSearcher) SimilaritySearch(ctx context.Context, query string, k int) ([]rag.Document, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn, err, docs := m.searchFunc, m.err, m.docs
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, k)
	}
	if err != nil {
		return nil, err
	}
	if k < len(docs) {
		docs = docs[:k]
	}
	return append([]rag.Document{}, docs...), nil
}

func (m *MockSearcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	return nil
}

// Queries 返回按顺序记录的检索查询
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.queries...)
}

// CloseCount 返回 Close 被调用的次数
func (m *MockSearcher) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}
