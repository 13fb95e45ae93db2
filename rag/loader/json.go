package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DCGM/semant-demo/rag"
)

// JSONLoaderConfig configures the JSON/JSONL loader.
type JSONLoaderConfig struct {
	// ContentField names the field holding the text. When empty the first
	// of "content", "text" and "body" present is used, and objects without
	// any of them are serialized whole.
	ContentField string
	// IDField defaults to "id".
	IDField string
}

var defaultContentFields = []string{"content", "text", "body"}

// JSONLoader loads .json (object or array) and .jsonl files. Fields other
// than the content field are kept as metadata.
type JSONLoader struct {
	config JSONLoaderConfig
}

func NewJSONLoader(config JSONLoaderConfig) *JSONLoader {
	if config.IDField == "" {
		config.IDField = "id"
	}
	return &JSONLoader{config: config}
}

func (l *JSONLoader) Load(ctx context.Context, path string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		items []map[string]any
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		items, err = readJSONL(path)
	} else {
		items, err = readJSON(path)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	docs := make([]rag.Document, 0, len(items))
	for i, obj := range items {
		field, content := l.content(obj)
		id := fmt.Sprintf("%s#%d", base, i)
		if v, ok := obj[l.config.IDField]; ok {
			id = fmt.Sprint(v)
		}

		extra := map[string]any{"index": i}
		for k, v := range obj {
			if k != field && k != l.config.IDField {
				extra[k] = v
			}
		}
		docs = append(docs, newDocument(path, id, content, "application/json", "json", extra))
	}
	return docs, nil
}

func readJSON(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("json loader: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("json loader: parsing array in %s: %w", path, err)
		}
		return items, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("json loader: parsing object in %s: %w", path, err)
	}
	return []map[string]any{obj}, nil
}

func readJSONL(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jsonl loader: %w", err)
	}
	defer f.Close()

	var items []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("jsonl loader: line %d in %s: %w", line, path, err)
		}
		items = append(items, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl loader: reading %s: %w", path, err)
	}
	return items, nil
}

// content returns the field used and the document text.
func (l *JSONLoader) content(obj map[string]any) (string, string) {
	fields := defaultContentFields
	if l.config.ContentField != "" {
		fields = []string{l.config.ContentField}
	}
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			return f, fmt.Sprint(v)
		}
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Sprint(obj)
	}
	return "", string(data)
}

func (l *JSONLoader) SupportedTypes() []string { return []string{".json", ".jsonl"} }
