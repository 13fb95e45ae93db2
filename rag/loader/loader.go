package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/rag"
)

// ErrUnsupported 没有为扩展名注册加载器
var ErrUnsupported = errors.New("unsupported document type")

// DocumentLoader reads one file into knowledge-base documents.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]rag.Document, error)
	// SupportedTypes returns lowercase extensions with the leading dot.
	SupportedTypes() []string
}

// LoaderRegistry routes files to a DocumentLoader by extension.
type LoaderRegistry struct {
	mu      sync.RWMutex
	loaders map[string]DocumentLoader
	logger  *zap.Logger
}

// NewLoaderRegistry creates a registry with the built-in loaders.
func NewLoaderRegistry(logger *zap.Logger) *LoaderRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LoaderRegistry{
		loaders: make(map[string]DocumentLoader),
		logger:  logger.With(zap.String("component", "document_loader")),
	}
	for _, l := range []DocumentLoader{
		NewTextLoader(),
		NewMarkdownLoader(),
		NewCSVLoader(CSVLoaderConfig{}),
		NewJSONLoader(JSONLoaderConfig{}),
		NewYAMLLoader(),
	} {
		for _, ext := range l.SupportedTypes() {
			r.loaders[strings.ToLower(ext)] = l
		}
	}
	return r
}

// Register adds or replaces the loader for ext (e.g. ".rst").
func (r *LoaderRegistry) Register(ext string, loader DocumentLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// Supports reports whether a loader is registered for path's extension.
func (r *LoaderRegistry) Supports(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load loads a single file.
func (r *LoaderRegistry) Load(ctx context.Context, path string) ([]rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, fmt.Errorf("%w: %q has no extension", ErrUnsupported, path)
	}

	r.mu.RLock()
	l, ok := r.loaders[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for %q", ErrUnsupported, ext)
	}
	return l.Load(ctx, path)
}

// LoadPath loads a file, or every supported file under a directory in
// lexical order. Unsupported files inside a directory are skipped.
func (r *LoaderRegistry) LoadPath(ctx context.Context, path string) ([]rag.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return r.Load(ctx, path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !r.Supports(p) {
			r.logger.Debug("skipping unsupported file", zap.String("path", p))
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	var docs []rag.Document
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := r.Load(ctx, f)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("loaded documents", zap.String("path", f), zap.Int("count", len(loaded)))
		docs = append(docs, loaded...)
	}
	return docs, nil
}

// SupportedTypes returns all registered extensions, sorted.
func (r *LoaderRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// newDocument 统一填充来源字段；source 为文件名，检索结果引用它
func newDocument(path, id, content, contentType, loader string, extra map[string]any) rag.Document {
	meta := map[string]any{
		"source_path":  path,
		"content_type": contentType,
		"loader":       loader,
	}
	for k, v := range extra {
		meta[k] = v
	}
	return rag.Document{
		ID:         id,
		Content:    content,
		Source:     filepath.Base(path),
		SourceType: rag.SourceTypeContent,
		Metadata:   meta,
	}
}
