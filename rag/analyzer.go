package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
)

const analysisFormat = `Respond only with a JSON object of the form {"is_valid": <boolean>, "refined_query": "<string>"}.`

// QueryAnalyzer 判断查询是否可回答并给出改写后的检索查询
type QueryAnalyzer struct {
	provider llm.Provider
	prompt   string
	logger   *zap.Logger
}

// NewQueryAnalyzer 从 agents 配置创建分析器
func NewQueryAnalyzer(provider llm.Provider, agents *AgentsConfig, logger *zap.Logger) (*QueryAnalyzer, error) {
	if provider == nil {
		return nil, fmt.Errorf("query analyzer: provider is nil")
	}
	prompt, err := agents.QueryAnalyzer.Prompt(PromptAnalysis)
	if err != nil {
		return nil, fmt.Errorf("query analyzer: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{
		provider: provider,
		prompt:   prompt + "\n\n" + analysisFormat,
		logger:   logger.With(zap.String("component", "query_analyzer")),
	}, nil
}

// AnalyzeQuery 调用模型分析查询。缺省 is_valid 为 true，refined_query 为原查询。
func (a *QueryAnalyzer) AnalyzeQuery(ctx context.Context, query string) (*QueryAnalysis, error) {
	text, err := llm.CompleteText(ctx, a.provider, RenderPrompt(a.prompt, map[string]string{"query": query}), llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("analyze query: %w", err)
	}
	parsed, err := parseJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("analyze query: %w", err)
	}

	analysis := &QueryAnalysis{
		OriginalQuery: query,
		IsValid:       boolField(parsed, "is_valid", true),
		RefinedQuery:  stringField(parsed, "refined_query", query),
	}
	a.logger.Debug("query analyzed",
		zap.Bool("is_valid", analysis.IsValid),
		zap.String("refined_query", analysis.RefinedQuery))
	return analysis, nil
}
