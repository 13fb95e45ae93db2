package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
)

// DefaultEvaluationScore 模型未给出分数时使用
const DefaultEvaluationScore = 5

const evaluationFormat = `Respond only with a JSON object of the form {"score": <number 1-10>, "needs_correction": <boolean>}.`

// Evaluator 评估检索结果是否足以回答查询
type Evaluator struct {
	provider llm.Provider
	prompt   string
	logger   *zap.Logger
}

func NewEvaluator(provider llm.Provider, agents *AgentsConfig, logger *zap.Logger) (*Evaluator, error) {
	if provider == nil {
		return nil, fmt.Errorf("evaluator: provider is nil")
	}
	prompt, err := agents.Evaluator.Prompt(PromptEvaluation)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		provider: provider,
		prompt:   prompt + "\n\n" + evaluationFormat,
		logger:   logger.With(zap.String("component", "evaluator")),
	}, nil
}

// EvaluateRetrieval 缺省 score 为 5，needs_correction 为 false
func (e *Evaluator) EvaluateRetrieval(ctx context.Context, query string, analysis *QueryAnalysis, retrieved *RetrievedInformation) (*EvaluationResults, error) {
	var results []RetrievedDocument
	if retrieved != nil {
		results = retrieved.KnowledgeBaseResults
	}
	prompt := RenderPrompt(e.prompt, map[string]string{
		"query":             query,
		"query_analysis":    toJSON(analysis),
		"retrieved_results": toJSON(results),
	})

	text, err := llm.CompleteText(ctx, e.provider, prompt, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("evaluate retrieval: %w", err)
	}
	parsed, err := parseJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("evaluate retrieval: %w", err)
	}

	eval := &EvaluationResults{
		Query:           query,
		Score:           numberField(parsed, "score", DefaultEvaluationScore),
		NeedsCorrection: boolField(parsed, "needs_correction", false),
	}
	e.logger.Debug("retrieval evaluated",
		zap.Float64("score", eval.Score),
		zap.Bool("needs_correction", eval.NeedsCorrection))
	return eval, nil
}
