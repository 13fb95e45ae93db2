package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/workflow"
	"github.com/DCGM/semant-demo/workflow/dsl"
)

// FallbackWorkflowName 内置拓扑的名称
const FallbackWorkflowName = "rag-fallback"

// BuildWorkflow 从配置文件编译工作流。
// 读取、结构校验或编译任一步失败都退回内置拓扑；内置拓扑本身无法编译时返回错误。
func BuildWorkflow(path string, stages map[NodeID]workflow.Stage[RequestState], routers map[string]workflow.Router[RequestState], logger *zap.Logger) (*workflow.Workflow[RequestState], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "graph_compiler"))

	wf, err := compileConfig(path, stages, routers, logger)
	if err == nil {
		logger.Info("loaded config-driven workflow",
			zap.String("path", path),
			zap.String("workflow", wf.Name()),
			zap.Strings("nodes", wf.Nodes()))
		return wf, nil
	}

	logger.Warn("falling back to built-in workflow", zap.String("path", path), zap.Error(err))
	wf, err = FallbackWorkflow(stages, routers)
	if err != nil {
		return nil, fmt.Errorf("build fallback workflow: %w", err)
	}
	return wf, nil
}

func compileConfig(path string, stages map[NodeID]workflow.Stage[RequestState], routers map[string]workflow.Router[RequestState], logger *zap.Logger) (*workflow.Workflow[RequestState], error) {
	if path == "" {
		return nil, fmt.Errorf("no workflow config path configured")
	}
	cfg, err := dsl.Load(path)
	if err != nil {
		return nil, err
	}
	if !dsl.Validate(cfg, logger) {
		return nil, fmt.Errorf("workflow config %s failed validation", path)
	}
	return dsl.Compile(cfg, stages, routers)
}

// FallbackWorkflow 内置拓扑：
//
//	query-analyzer → retrieval → evaluator
//	evaluator ─should_correct─▶ correct: correction-handler | proceed: response-generator
//	correction-handler → retrieval
//	response-generator → END
func FallbackWorkflow(stages map[NodeID]workflow.Stage[RequestState], routers map[string]workflow.Router[RequestState]) (*workflow.Workflow[RequestState], error) {
	router, ok := routers[RouterShouldCorrect]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownRouter, RouterShouldCorrect)
	}

	b := workflow.NewBuilder[RequestState](FallbackWorkflowName)
	for _, id := range []NodeID{NodeQueryAnalyzer, NodeRetrieval, NodeEvaluator, NodeCorrectionHandler, NodeResponseGenerator} {
		st, ok := stages[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownNode, id)
		}
		b.AddNode(string(id), st)
	}
	b.AddEdge(string(NodeQueryAnalyzer), string(NodeRetrieval)).
		AddEdge(string(NodeRetrieval), string(NodeEvaluator)).
		AddConditionalEdge(string(NodeEvaluator), RouterShouldCorrect, router, map[string]string{
			BranchCorrect: string(NodeCorrectionHandler),
			BranchProceed: string(NodeResponseGenerator),
		}).
		AddEdge(string(NodeCorrectionHandler), string(NodeRetrieval)).
		AddEdge(string(NodeResponseGenerator), workflow.End).
		SetEntry(string(NodeQueryAnalyzer))

	return b.Build(workflow.SourceFallback)
}
