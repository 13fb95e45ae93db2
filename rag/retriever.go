package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
)

// Retriever 检索知识库并在评估不通过时改写查询
type Retriever struct {
	searcher     DocumentSearcher
	provider     llm.Provider
	refinePrompt string
	maxResults   int
	logger       *zap.Logger
}

// NewRetriever 创建检索器；searcher 的生命周期由调用方管理
func NewRetriever(searcher DocumentSearcher, provider llm.Provider, agents *AgentsConfig, logger *zap.Logger) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("retriever: document searcher is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("retriever: provider is nil")
	}
	prompt, err := agents.Retrieval.Prompt(PromptRefinement)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}
	maxResults := agents.Retrieval.MaxResultsPerSource
	if maxResults <= 0 {
		maxResults = DefaultMaxResultsPerSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		searcher:     searcher,
		provider:     provider,
		refinePrompt: prompt,
		maxResults:   maxResults,
		logger:       logger.With(zap.String("component", "retriever")),
	}, nil
}

// MaxResults 每次检索返回的最大条数
func (r *Retriever) MaxResults() int { return r.maxResults }

// RetrieveInformation 以当前查询检索知识库。
// 纠错阶段已将查询替换为改写后的版本，attempts 仅用于记录。
func (r *Retriever) RetrieveInformation(ctx context.Context, query string, analysis *QueryAnalysis, attempts int) (*RetrievedInformation, error) {
	searchQuery := query
	if attempts == 0 && analysis != nil && analysis.IsValid && strings.TrimSpace(analysis.RefinedQuery) != "" {
		searchQuery = analysis.RefinedQuery
	}

	docs, err := r.searcher.SimilaritySearch(ctx, searchQuery, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}

	results := formatResults(docs, SourceTypeContent)
	if len(results) > r.maxResults {
		results = results[:r.maxResults]
	}

	r.logger.Debug("information retrieved",
		zap.String("search_query", searchQuery),
		zap.Int("attempts", attempts),
		zap.Int("results", len(results)))

	return &RetrievedInformation{
		Query:                query,
		SearchQuery:          searchQuery,
		KnowledgeBaseResults: results,
		RetrievalQuality:     RetrievalQualityUnknown,
	}, nil
}

// formatResults 按返回顺序编号，relevance_score = 1.0 - rank*0.1
func formatResults(docs []Document, sourceType string) []RetrievedDocument {
	out := make([]RetrievedDocument, 0, len(docs))
	for i, d := range docs {
		rank := i + 1
		source := d.Source
		if source == "" {
			source = "Unknown source"
		}
		meta := make(map[string]any, len(d.Metadata)+2)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta["source"] = d.Source
		if d.SourceType != "" {
			meta["source_type"] = d.SourceType
		}
		out = append(out, RetrievedDocument{
			Rank:           rank,
			Content:        d.Content,
			Source:         source,
			SourceType:     sourceType,
			RelevanceScore: 1.0 - float64(rank)*0.1,
			Metadata:       meta,
		})
	}
	return out
}

// RefineQuery 让模型基于失败的检索结果改写查询
func (r *Retriever) RefineQuery(ctx context.Context, original string, retrieved *RetrievedInformation, evaluation *EvaluationResults) (string, error) {
	var failed []RetrievedDocument
	if retrieved != nil {
		failed = retrieved.KnowledgeBaseResults
	}
	vars := map[string]string{
		"original_query": original,
		"failed_results": toJSON(failed),
	}
	if evaluation != nil {
		vars["evaluation_results"] = toJSON(evaluation)
	}

	refined, err := llm.CompleteText(ctx, r.provider, RenderPrompt(r.refinePrompt, vars))
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	refined = strings.Trim(refined, "\"' \n")
	if refined == "" {
		return "", fmt.Errorf("refine query: model returned an empty query")
	}
	r.logger.Debug("query refined", zap.String("original", original), zap.String("refined", refined))
	return refined, nil
}
