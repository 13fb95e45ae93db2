package loader

import (
	"context"
	"path/filepath"

	"github.com/DCGM/semant-demo/rag"
)

// YAMLLoader reads a seed file with a top-level "documents" list, the
// format of the bundled sample knowledge base.
type YAMLLoader struct{}

func NewYAMLLoader() *YAMLLoader { return &YAMLLoader{} }

func (l *YAMLLoader) Load(ctx context.Context, path string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := rag.LoadDocuments(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	for i := range docs {
		if docs[i].Source == "" {
			docs[i].Source = base
		}
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source_path"] = path
		docs[i].Metadata["loader"] = "yaml"
	}
	return docs, nil
}

func (l *YAMLLoader) SupportedTypes() []string { return []string{".yaml", ".yml"} }
