package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/rag"
)

// Indexer is a store that accepts documents, e.g. rag.MemoryStore or
// rag.WeaviateStore.
type Indexer interface {
	AddDocuments(ctx context.Context, docs []rag.Document) error
}

// DefaultBatchSize 每批写入的文档数
const DefaultBatchSize = 64

// IngestStats summarizes an ingestion run.
type IngestStats struct {
	Files     int           `json:"files"`
	Documents int           `json:"documents"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
}

// Ingest loads every path and writes the documents to idx in batches.
// Loading errors abort before anything is written.
func Ingest(ctx context.Context, reg *LoaderRegistry, idx Indexer, paths []string, batchSize int, logger *zap.Logger) (IngestStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	start := time.Now()
	stats := IngestStats{}

	var docs []rag.Document
	for _, p := range paths {
		loaded, err := reg.LoadPath(ctx, p)
		if err != nil {
			return stats, fmt.Errorf("load %s: %w", p, err)
		}
		stats.Files++
		docs = append(docs, loaded...)
	}

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))
		if err := idx.AddDocuments(ctx, docs[i:end]); err != nil {
			return stats, fmt.Errorf("index batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Documents += end - i
		logger.Debug("indexed batch", zap.Int("batch", stats.Batches), zap.Int("documents", end-i))
	}

	stats.Duration = time.Since(start)
	logger.Info("ingestion finished",
		zap.Int("paths", stats.Files),
		zap.Int("documents", stats.Documents),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}
