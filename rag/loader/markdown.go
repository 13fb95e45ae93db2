package loader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DCGM/semant-demo/rag"
)

// MarkdownLoader splits a Markdown file into one document per heading
// section. Text before the first heading forms its own section.
type MarkdownLoader struct{}

func NewMarkdownLoader() *MarkdownLoader { return &MarkdownLoader{} }

type mdSection struct {
	heading string
	level   int
	lines   []string
}

func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("markdown loader: %w", err)
	}
	defer f.Close()

	var sections []mdSection
	inFence := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence {
			if heading, level := parseHeading(line); heading != "" {
				sections = append(sections, mdSection{heading: heading, level: level})
				continue
			}
		}
		if len(sections) == 0 {
			sections = append(sections, mdSection{})
		}
		last := &sections[len(sections)-1]
		last.lines = append(last.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("markdown loader: reading %s: %w", path, err)
	}

	base := filepath.Base(path)
	docs := make([]rag.Document, 0, len(sections))
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.lines, "\n"))
		if body == "" {
			continue
		}
		extra := map[string]any{"section": len(docs)}
		content := body
		if sec.heading != "" {
			extra["heading"] = sec.heading
			extra["heading_level"] = sec.level
			// 标题参与检索
			content = sec.heading + "\n\n" + body
		}
		id := fmt.Sprintf("%s#%d", base, len(docs))
		docs = append(docs, newDocument(path, id, content, "text/markdown", "markdown", extra))
	}
	return docs, nil
}

// parseHeading detects ATX headings and returns their text and level (1-6).
func parseHeading(line string) (string, int) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level < 1 || level > 6 || (level < len(trimmed) && trimmed[level] != ' ') {
		return "", 0
	}
	heading := strings.TrimSpace(strings.TrimRight(trimmed[level:], "#"))
	if heading == "" {
		return "", 0
	}
	return heading, level
}

func (l *MarkdownLoader) SupportedTypes() []string { return []string{".md", ".markdown"} }
