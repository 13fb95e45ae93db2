package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DCGM/semant-demo/rag"
)

// TextLoader 整个文件作为一篇文档，ID 为文件名
type TextLoader struct{}

func NewTextLoader() *TextLoader { return &TextLoader{} }

func (l *TextLoader) SupportedTypes() []string { return []string{".txt"} }

// Load 只有空白的文件返回空切片
func (l *TextLoader) Load(ctx context.Context, path string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("text loader: %w", err)
	}
	raw = bytes.TrimSpace(bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n")))
	if len(raw) == 0 {
		return []rag.Document{}, nil
	}

	extra := map[string]any{"lines": bytes.Count(raw, []byte("\n")) + 1}
	doc := newDocument(path, filepath.Base(path), string(raw), "text/plain", "text", extra)
	return []rag.Document{doc}, nil
}
