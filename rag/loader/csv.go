package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DCGM/semant-demo/rag"
)

// CSVLoaderConfig configures the CSV loader.
type CSVLoaderConfig struct {
	// Delimiter defaults to ','.
	Delimiter rune
	// RowsPerDocument groups rows; values below 1 mean one row per document.
	RowsPerDocument int
	// ContentColumns selects header columns for the content. Empty means all.
	ContentColumns []string
}

// CSVLoader treats the first row as a header and renders each row as
// "column: value" lines.
type CSVLoader struct {
	config CSVLoaderConfig
}

func NewCSVLoader(config CSVLoaderConfig) *CSVLoader {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if config.RowsPerDocument < 1 {
		config.RowsPerDocument = 1
	}
	return &CSVLoader{config: config}
}

func (l *CSVLoader) Load(ctx context.Context, path string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv loader: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = l.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv loader: parsing %s: %w", path, err)
	}
	if len(records) < 2 {
		return []rag.Document{}, nil
	}

	header, rows := records[0], records[1:]
	columns := l.contentColumns(header)
	base := filepath.Base(path)

	var docs []rag.Document
	for start := 0; start < len(rows); start += l.config.RowsPerDocument {
		end := min(start+l.config.RowsPerDocument, len(rows))

		var sb strings.Builder
		for _, row := range rows[start:end] {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			for j, idx := range columns {
				if idx >= len(row) {
					continue
				}
				if j > 0 {
					sb.WriteString("; ")
				}
				sb.WriteString(header[idx])
				sb.WriteString(": ")
				sb.WriteString(row[idx])
			}
		}

		id := fmt.Sprintf("%s#row%d", base, start+1)
		docs = append(docs, newDocument(path, id, sb.String(), "text/csv", "csv", map[string]any{
			"row_start": start + 1,
			"row_end":   end,
		}))
	}
	return docs, nil
}

func (l *CSVLoader) contentColumns(header []string) []int {
	wanted := make(map[string]bool, len(l.config.ContentColumns))
	for _, col := range l.config.ContentColumns {
		wanted[strings.ToLower(col)] = true
	}

	var idx []int
	for i, h := range header {
		if len(wanted) == 0 || wanted[strings.ToLower(h)] {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		for i := range header {
			idx = append(idx, i)
		}
	}
	return idx
}

func (l *CSVLoader) SupportedTypes() []string { return []string{".csv"} }
