// Package loader turns files into knowledge-base documents for the
// retrieval stores.
//
// Every document carries Source (the file name, cited in answers) and
// SourceType "content". Built-in formats:
//   - plain text (.txt), one document per file
//   - Markdown (.md, .markdown), one document per heading section
//   - CSV (.csv), one document per row group
//   - JSON / JSONL (.json, .jsonl), one document per object
//   - YAML seed files (.yaml, .yml) with a top-level "documents" list
//
// LoadPath accepts a file or a directory; Ingest batches the result into
// an Indexer:
//
//	reg := loader.NewLoaderRegistry(logger)
//	stats, err := loader.Ingest(ctx, reg, store, []string{"docs/"}, 0, logger)
package loader
