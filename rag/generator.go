package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
	"github.com/DCGM/semant-demo/llm/tokenizer"
)

// ResponseGenerationApology 回答生成失败时返回给用户的文本
const ResponseGenerationApology = "I apologize, but I encountered an error while generating a response. " +
	"Please try rephrasing your question or ask about a different topic."

// DefaultContextTokens 检索上下文的默认 token 预算
const DefaultContextTokens = 3000

// ResponseGenerator 基于检索结果生成最终回答
type ResponseGenerator struct {
	provider      llm.Provider
	prompt        string
	tokenizer     tokenizer.Tokenizer
	contextTokens int
	logger        *zap.Logger
}

// GeneratorOption 配置 ResponseGenerator
type GeneratorOption func(*ResponseGenerator)

// WithTokenizer 设置截断上下文所用的分词器
func WithTokenizer(t tokenizer.Tokenizer) GeneratorOption {
	return func(g *ResponseGenerator) { g.tokenizer = t }
}

// WithContextTokens 设置检索上下文的 token 预算
func WithContextTokens(n int) GeneratorOption {
	return func(g *ResponseGenerator) {
		if n > 0 {
			g.contextTokens = n
		}
	}
}

func NewResponseGenerator(provider llm.Provider, agents *AgentsConfig, logger *zap.Logger, opts ...GeneratorOption) (*ResponseGenerator, error) {
	if provider == nil {
		return nil, fmt.Errorf("response generator: provider is nil")
	}
	prompt, err := agents.ResponseGenerator.Prompt(PromptResponseGeneration)
	if err != nil {
		return nil, fmt.Errorf("response generator: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &ResponseGenerator{
		provider:      provider,
		prompt:        prompt,
		contextTokens: DefaultContextTokens,
		logger:        logger.With(zap.String("component", "response_generator")),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tokenizer == nil {
		g.tokenizer = tokenizer.NewEstimatorTokenizer("", 0)
	}
	return g, nil
}

// GenerateResponse 渲染提示词并调用模型
func (g *ResponseGenerator) GenerateResponse(ctx context.Context, query string, analysis *QueryAnalysis, retrieved *RetrievedInformation, evaluation *EvaluationResults) (*GeneratedResponse, error) {
	contextText, err := g.buildContext(retrieved)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	prompt := RenderPrompt(g.prompt, map[string]string{
		"query":                 query,
		"query_analysis":        toJSON(analysis),
		"retrieved_information": contextText,
		"evaluation_results":    toJSON(evaluation),
	})

	text, err := llm.CompleteText(ctx, g.provider, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	return &GeneratedResponse{
		Query:                query,
		ResponseText:         text,
		QueryAnalysis:        analysis,
		RetrievedInformation: retrieved,
		EvaluationResults:    evaluation,
	}, nil
}

// buildContext 按排名拼接检索内容，整体截断到 token 预算
func (g *ResponseGenerator) buildContext(retrieved *RetrievedInformation) (string, error) {
	if retrieved == nil || len(retrieved.KnowledgeBaseResults) == 0 {
		return "No relevant information was found.", nil
	}

	var sb strings.Builder
	for _, r := range retrieved.KnowledgeBaseResults {
		fmt.Fprintf(&sb, "[%d] (source: %s)\n%s\n\n", r.Rank, r.Source, strings.TrimSpace(r.Content))
	}
	full := strings.TrimSpace(sb.String())

	out, err := g.tokenizer.Truncate(full, g.contextTokens)
	if err != nil {
		return "", fmt.Errorf("truncate context: %w", err)
	}
	if len(out) < len(full) {
		g.logger.Debug("retrieved context truncated",
			zap.Int("budget_tokens", g.contextTokens),
			zap.Int("original_bytes", len(full)),
			zap.Int("truncated_bytes", len(out)))
	}
	return out, nil
}

// BasicResponseGenerator 不调用模型，直接回显检索到的内容
type BasicResponseGenerator struct{}

func NewBasicResponseGenerator() *BasicResponseGenerator { return &BasicResponseGenerator{} }

func (BasicResponseGenerator) GenerateResponse(_ context.Context, query string, _ *QueryAnalysis, retrieved *RetrievedInformation, _ *EvaluationResults) (*GeneratedResponse, error) {
	if retrieved == nil {
		return nil, fmt.Errorf("basic response: no retrieved information")
	}
	var sb strings.Builder
	for _, r := range retrieved.KnowledgeBaseResults {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n", r.Rank, strings.TrimSpace(r.Content), r.Source)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		text = "No relevant information was found."
	}
	return &GeneratedResponse{
		Query:                query,
		ResponseText:         text,
		RetrievedInformation: retrieved,
	}, nil
}
