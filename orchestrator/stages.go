package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/rag"
	"github.com/DCGM/semant-demo/workflow"
)

// NodeID 阶段节点名称
type NodeID string

const (
	NodeQueryAnalyzer          NodeID = "query-analyzer"
	NodeRetrieval              NodeID = "retrieval"
	NodeEvaluator              NodeID = "evaluator"
	NodeResponseGenerator      NodeID = "response-generator"
	NodeBasicResponseGenerator NodeID = "basic-response-generator"
	NodeCorrectionHandler      NodeID = "correction-handler"
)

// AllNodes 注册表中的全部节点，按默认拓扑顺序
var AllNodes = []NodeID{
	NodeQueryAnalyzer,
	NodeRetrieval,
	NodeEvaluator,
	NodeCorrectionHandler,
	NodeResponseGenerator,
	NodeBasicResponseGenerator,
}

// ProcessingApology ProcessQuery 失败时返回给用户的文本
const ProcessingApology = "I apologize, but I encountered an error while processing your request. Please try again."

// ErrCodeProcessingFailed 运行器失败时 QueryResult.Error 的固定取值，原始错误只进日志和 Err
const ErrCodeProcessingFailed = "processing_failed"

// stage 单个节点的执行与降级逻辑
type stage struct {
	id      NodeID
	run     func(ctx context.Context, s RequestState) (StateUpdate, error)
	degrade func(s RequestState, err error) StateUpdate
	logger  *zap.Logger
	rec     Recorder
}

// Run 执行阶段；协作者错误与 panic 都转换为降级更新，不会向外传播
func (st *stage) Run(ctx context.Context, s RequestState) (u workflow.Update[RequestState]) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", st.id, r)
			st.logger.Error("stage panicked", zap.String("node", string(st.id)), zap.Any("panic", r), zap.Stack("stack"))
			st.rec.IncDegradation(string(st.id))
			u = st.degrade(s, err)
		}
	}()

	update, err := st.run(ctx, s)
	if err != nil {
		st.logger.Warn("stage degraded", zap.String("node", string(st.id)), zap.Error(err))
		st.rec.IncDegradation(string(st.id))
		return st.degrade(s, err)
	}
	return update
}

// NewStageRegistry 构建固定的六个阶段
func NewStageRegistry(c Collaborators, logger *zap.Logger, rec Recorder) map[NodeID]workflow.Stage[RequestState] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	logger = logger.With(zap.String("component", "orchestrator_stage"))

	specs := []*stage{
		analyzerStage(c.Analyzer),
		retrievalStage(c.Retriever),
		evaluatorStage(c.Evaluator),
		correctionStage(c.Retriever),
		generatorStage(NodeResponseGenerator, c.Generator),
		generatorStage(NodeBasicResponseGenerator, c.BasicGenerator),
	}
	registry := make(map[NodeID]workflow.Stage[RequestState], len(specs))
	for _, s := range specs {
		s.logger = logger
		s.rec = rec
		registry[s.id] = s
	}
	return registry
}

func analyzerStage(a QueryAnalyzer) *stage {
	return &stage{
		id: NodeQueryAnalyzer,
		run: func(ctx context.Context, s RequestState) (StateUpdate, error) {
			if s.Query == "" {
				return errorOnly("No query available for analysis"), nil
			}
			analysis, err := a.AnalyzeQuery(ctx, s.Query)
			if err != nil {
				return StateUpdate{}, err
			}
			return StateUpdate{QueryAnalysis: analysis}, nil
		},
		degrade: func(s RequestState, err error) StateUpdate {
			msg := fmt.Sprintf("Error in query analysis: %v", err)
			return StateUpdate{
				QueryAnalysis: &rag.QueryAnalysis{
					OriginalQuery: s.Query,
					IsValid:       false,
					RefinedQuery:  s.Query,
					Error:         msg,
				},
				Error: ptr(msg),
			}
		},
	}
}

func retrievalStage(r Retriever) *stage {
	return &stage{
		id: NodeRetrieval,
		run: func(ctx context.Context, s RequestState) (StateUpdate, error) {
			if s.Query == "" {
				return errorOnly("No query available for retrieval"), nil
			}
			info, err := r.RetrieveInformation(ctx, s.Query, s.QueryAnalysis, s.CorrectionAttempts)
			if err != nil {
				return StateUpdate{}, err
			}
			return StateUpdate{RetrievedInformation: info}, nil
		},
		degrade: func(s RequestState, err error) StateUpdate {
			msg := fmt.Sprintf("Error in information retrieval: %v", err)
			return StateUpdate{
				RetrievedInformation: &rag.RetrievedInformation{
					Query:                s.Query,
					KnowledgeBaseResults: []rag.RetrievedDocument{},
					RetrievalQuality:     rag.RetrievalQualityPoor,
					Error:                msg,
				},
				Error: ptr(msg),
			}
		},
	}
}

func evaluatorStage(e Evaluator) *stage {
	return &stage{
		id: NodeEvaluator,
		run: func(ctx context.Context, s RequestState) (StateUpdate, error) {
			if s.Query == "" {
				return errorOnly("No query available for evaluation"), nil
			}
			eval, err := e.EvaluateRetrieval(ctx, s.Query, s.QueryAnalysis, s.RetrievedInformation)
			if err != nil {
				return StateUpdate{}, err
			}
			return StateUpdate{EvaluationResults: eval, NeedsCorrection: ptr(eval.NeedsCorrection)}, nil
		},
		degrade: func(s RequestState, err error) StateUpdate {
			msg := fmt.Sprintf("Error in evaluation: %v", err)
			return StateUpdate{
				EvaluationResults: &rag.EvaluationResults{
					Query:           s.Query,
					Score:           rag.DefaultEvaluationScore,
					NeedsCorrection: true,
					Error:           msg,
				},
				NeedsCorrection: ptr(true),
				Error:           ptr(msg),
			}
		},
	}
}

// correctionStage 每次执行都令 CorrectionAttempts 加一并重置 NeedsCorrection，
// 成功与否都一样，这保证了纠错循环有界。
func correctionStage(r Retriever) *stage {
	return &stage{
		id: NodeCorrectionHandler,
		run: func(ctx context.Context, s RequestState) (StateUpdate, error) {
			refined, err := r.RefineQuery(ctx, s.Query, s.RetrievedInformation, s.EvaluationResults)
			if err != nil {
				return StateUpdate{}, err
			}
			return StateUpdate{
				Query:              ptr(refined),
				CorrectionAttempts: ptr(s.CorrectionAttempts + 1),
				NeedsCorrection:    ptr(false),
			}, nil
		},
		degrade: func(s RequestState, err error) StateUpdate {
			return StateUpdate{
				Query:              ptr(FallbackRefinedQuery(s.Query)),
				CorrectionAttempts: ptr(s.CorrectionAttempts + 1),
				NeedsCorrection:    ptr(false),
				Error:              ptr(fmt.Sprintf("Error in correction handling: %v", err)),
			}
		},
	}
}

// FallbackRefinedQuery 模型无法改写查询时使用的扩展查询
func FallbackRefinedQuery(query string) string {
	return "detailed information about " + query
}

func generatorStage(id NodeID, g ResponseGenerator) *stage {
	return &stage{
		id: id,
		run: func(ctx context.Context, s RequestState) (StateUpdate, error) {
			if s.Query == "" {
				return errorOnly("No query available for response generation"), nil
			}
			resp, err := g.GenerateResponse(ctx, s.Query, s.QueryAnalysis, s.RetrievedInformation, s.EvaluationResults)
			if err != nil {
				return StateUpdate{}, err
			}
			return StateUpdate{ResponseGenerated: resp, FinalResponse: ptr(resp.ResponseText)}, nil
		},
		degrade: func(s RequestState, err error) StateUpdate {
			msg := fmt.Sprintf("Error in response generation: %v", err)
			return StateUpdate{
				ResponseGenerated: &rag.GeneratedResponse{
					Query:                s.Query,
					ResponseText:         rag.ResponseGenerationApology,
					QueryAnalysis:        s.QueryAnalysis,
					RetrievedInformation: s.RetrievedInformation,
					EvaluationResults:    s.EvaluationResults,
					Error:                msg,
				},
				FinalResponse: ptr(rag.ResponseGenerationApology),
				Error:         ptr(msg),
			}
		},
	}
}

// Recorder 接收编排层指标；internal/metrics.Collector 是默认实现
type Recorder interface {
	workflow.NodeObserver
	ObserveRequest(success bool, d time.Duration)
	ObserveCorrections(attempts int)
	IncDegradation(node string)
	SetWorkflowSource(workflow string, source workflow.Source)
}

// NopRecorder 丢弃所有指标
type NopRecorder struct{}

func (NopRecorder) ObserveNode(string, string, time.Duration) {}
func (NopRecorder) ObserveRequest(bool, time.Duration) {}
func (NopRecorder) ObserveCorrections(int) {}
func (NopRecorder) IncDegradation(string) {}
func (NopRecorder) SetWorkflowSource(string, workflow.Source) {}
