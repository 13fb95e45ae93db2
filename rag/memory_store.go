package rag

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DCGM/semant-demo/llm/embedding"
)

// MemoryStore 内存向量存储（用于测试和小规模知识库）
type MemoryStore struct {
	embedder  embedding.Provider
	documents []Document
	closed    bool
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore(embedder embedding.Provider, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		embedder: embedder,
		logger:   logger.With(zap.String("component", "memory_store")),
	}
}

// AddDocuments 为缺少向量的文档计算嵌入后加入存储
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []Document) error {
	var pending []int
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			pending = append(pending, i)
		}
	}
	if len(pending) > 0 {
		if s.embedder == nil {
			return fmt.Errorf("document %s has no embedding and no embedder is configured", docs[pending[0]].ID)
		}
		texts := make([]string, len(pending))
		for j, i := range pending {
			texts[j] = docs[i].Content
		}
		vecs, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed documents: %w", err)
		}
		for j, i := range pending {
			docs[i].Embedding = vecs[j]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.documents = append(s.documents, docs...)

	s.logger.Info("documents added to vector store",
		zap.Int("count", len(docs)),
		zap.Int("total", len(s.documents)))
	return nil
}

// SimilaritySearch 按余弦相似度返回前 k 条
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("memory store: no embedder configured")
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}
	if k <= 0 {
		return []Document{}, nil
	}

	qv, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Document, 0, len(s.documents))
	for _, doc := range s.documents {
		d := doc
		d.Score = cosineSimilarity(qv, doc.Embedding)
		results = append(results, d)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Count 返回文档数量
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.documents = nil
	return nil
}

// LoadDocuments 从 YAML 文件读取种子文档列表
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents %s: %w", path, err)
	}
	var file struct {
		Documents []Document `yaml:"documents"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse documents %s: %w", path, err)
	}
	for i := range file.Documents {
		if file.Documents[i].ID == "" {
			file.Documents[i].ID = fmt.Sprintf("doc-%d", i+1)
		}
		if file.Documents[i].SourceType == "" {
			file.Documents[i].SourceType = SourceTypeContent
		}
	}
	return file.Documents, nil
}

// cosineSimilarity 余弦相似度；维度不一致或零向量返回 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
