package mocks

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockEmbedder 是 embedding.Provider 的确定性模拟实现：
// 词袋哈希到固定维度，词汇重叠越多余弦相似度越高。
type MockEmbedder struct {
	Dims int
	Err  error
}

func NewMockEmbedder() *MockEmbedder { return &MockEmbedder{Dims: 64} }

func (m *MockEmbedder) Name() string { return "mock-embedding" }

func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vecs, err := m.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(documents))
	for i, doc := range documents {
		vec := make([]float64, m.Dims)
		for _, word := range strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[int(h.Sum32()%uint32(m.Dims))]++
		}
		out[i] = vec
	}
	return out, nil
}
