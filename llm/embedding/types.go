package embedding

import "context"

// Provider 为 memory 知识库计算向量。EmbedDocuments 的结果与输入一一对应
type Provider interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)
	Name() string
}
