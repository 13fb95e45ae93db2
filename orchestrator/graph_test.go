package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DCGM/semant-demo/testutil"
	"github.com/DCGM/semant-demo/workflow"
)

func registries() (map[NodeID]workflow.Stage[RequestState], map[string]workflow.Router[RequestState]) {
	return NewStageRegistry(newFixture(false).collaborators(), nil, nil), NewRouterRegistry(DefaultMaxCorrectionAttempts)
}

func TestFallbackWorkflow_Topology(t *testing.T) {
	stages, routers := registries()
	wf, err := FallbackWorkflow(stages, routers)
	require.NoError(t, err)

	assert.True(t, wf.IsFallback())
	assert.Equal(t, string(NodeQueryAnalyzer), wf.Entry())
	assert.False(t, wf.HasNode(string(NodeBasicResponseGenerator)))
	assert.Equal(t, []workflow.Edge{
		{From: string(NodeCorrectionHandler), To: string(NodeRetrieval)},
		{From: string(NodeQueryAnalyzer), To: string(NodeRetrieval)},
		{From: string(NodeResponseGenerator), To: workflow.End},
		{From: string(NodeRetrieval), To: string(NodeEvaluator)},
	}, wf.Edges())

	cond := wf.ConditionalEdges()
	require.Len(t, cond, 1)
	assert.Equal(t, string(NodeEvaluator), cond[0].From)
	assert.Equal(t, RouterShouldCorrect, cond[0].RouterName)
	assert.Equal(t, map[string]string{
		BranchCorrect: string(NodeCorrectionHandler),
		BranchProceed: string(NodeResponseGenerator),
	}, cond[0].Branches)
}

func TestBuildWorkflow_FallbackReasons(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unparseable", yaml: "edges: [unclosed"},
		{name: "missing edges", yaml: "entry_point: query-analyzer\n"},
		{name: "conditional without router", yaml: `
entry_point: query-analyzer
edges:
  - from: query-analyzer
    conditional:
      branches: {proceed: END}
`},
		{name: "unknown node", yaml: `
entry_point: query-analyzer
edges:
  - from: query-analyzer
    to: web-search
  - from: web-search
    to: END
`},
		{name: "unknown router", yaml: `
entry_point: query-analyzer
edges:
  - from: query-analyzer
    conditional:
      function: always_correct
      branches: {proceed: END}
`},
		{name: "END unreachable", yaml: `
entry_point: retrieval
edges:
  - from: retrieval
    to: evaluator
  - from: evaluator
    to: retrieval
`},
		{name: "dead-end branch", yaml: `
entry_point: retrieval
edges:
  - from: retrieval
    to: evaluator
  - from: evaluator
    conditional:
      function: should_correct
      branches: {proceed: END, correct: correction-handler}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, "workflow.yaml", tt.yaml)
			core, logs := observer.New(zapcore.WarnLevel)
			stages, routers := registries()

			wf, err := BuildWorkflow(path, stages, routers, zap.New(core))
			require.NoError(t, err)
			assert.True(t, wf.IsFallback())
			assert.NotZero(t, logs.FilterMessage("falling back to built-in workflow").Len())
		})
	}
}

func TestBuildWorkflow_MissingFile(t *testing.T) {
	stages, routers := registries()
	wf, err := BuildWorkflow("/nonexistent/workflow.yaml", stages, routers, nil)
	require.NoError(t, err)
	assert.True(t, wf.IsFallback())
}

func TestBuildWorkflow_StartEdge(t *testing.T) {
	path := testutil.WriteFile(t, "workflow.yaml", `
edges:
  - from: START
    to: query-analyzer
  - from: query-analyzer
    to: retrieval
  - from: retrieval
    to: basic-response-generator
  - from: basic-response-generator
    to: END
`)
	stages, routers := registries()
	wf, err := BuildWorkflow(path, stages, routers, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.SourceConfig, wf.Source())
	assert.Equal(t, string(NodeQueryAnalyzer), wf.Entry())

	final, err := workflow.NewRunner[RequestState](nil).Run(context.Background(), wf, NewRequestState("algebra"))
	require.NoError(t, err)
	assert.Equal(t, "[1] about algebra (kb)", final.ResponseGenerated.ResponseText)
	assert.Nil(t, final.EvaluationResults)
}

func TestBuildWorkflow_Idempotent(t *testing.T) {
	path := testutil.WriteFile(t, "workflow.yaml", basicWorkflowYAML)
	stages, routers := registries()

	a, err := BuildWorkflow(path, stages, routers, nil)
	require.NoError(t, err)
	b, err := BuildWorkflow(path, stages, routers, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Entry(), b.Entry())
	assert.Equal(t, a.Nodes(), b.Nodes())
	assert.Equal(t, a.Edges(), b.Edges())
	assert.Equal(t, a.ConditionalEdges(), b.ConditionalEdges())
}
