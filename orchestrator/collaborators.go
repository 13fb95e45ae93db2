package orchestrator

import (
	"context"

	"github.com/DCGM/semant-demo/rag"
)

// QueryAnalyzer 查询分析协作者
type QueryAnalyzer interface {
	AnalyzeQuery(ctx context.Context, query string) (*rag.QueryAnalysis, error)
}

// Retriever 检索与查询改写协作者
type Retriever interface {
	RetrieveInformation(ctx context.Context, query string, analysis *rag.QueryAnalysis, attempts int) (*rag.RetrievedInformation, error)
	RefineQuery(ctx context.Context, original string, retrieved *rag.RetrievedInformation, evaluation *rag.EvaluationResults) (string, error)
}

// Evaluator 检索质量评估协作者
type Evaluator interface {
	EvaluateRetrieval(ctx context.Context, query string, analysis *rag.QueryAnalysis, retrieved *rag.RetrievedInformation) (*rag.EvaluationResults, error)
}

// ResponseGenerator 回答生成协作者
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, query string, analysis *rag.QueryAnalysis, retrieved *rag.RetrievedInformation, evaluation *rag.EvaluationResults) (*rag.GeneratedResponse, error)
}

// Collaborators 各阶段依赖的外部组件。
// Searcher 是检索器背后的向量库句柄，由 Orchestrator 持有并在 Close 时释放。
type Collaborators struct {
	Analyzer       QueryAnalyzer
	Retriever      Retriever
	Evaluator      Evaluator
	Generator      ResponseGenerator
	BasicGenerator ResponseGenerator
	Searcher       rag.DocumentSearcher
}

// Compile-time checks.
var (
	_ QueryAnalyzer     = (*rag.QueryAnalyzer)(nil)
	_ Retriever         = (*rag.Retriever)(nil)
	_ Evaluator         = (*rag.Evaluator)(nil)
	_ ResponseGenerator = (*rag.ResponseGenerator)(nil)
	_ ResponseGenerator = (*rag.BasicResponseGenerator)(nil)
)
