package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
	"github.com/DCGM/semant-demo/llm/tokenizer"
	"github.com/DCGM/semant-demo/rag"
	"github.com/DCGM/semant-demo/testutil"
	"github.com/DCGM/semant-demo/testutil/fixtures"
	"github.com/DCGM/semant-demo/testutil/mocks"
)

var errUpstream = &llm.Error{Code: llm.ErrUpstreamError, Message: "upstream down"}

func agents() *rag.AgentsConfig {
	cfg := rag.DefaultAgentsConfig()
	cfg.Retrieval.MaxResultsPerSource = 2
	return cfg
}

func TestQueryAnalyzer(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantValid   bool
		wantRefined string
	}{
		{name: "full", response: fixtures.AnalysisJSON(false, "basics of algebra"), wantValid: false, wantRefined: "basics of algebra"},
		{name: "fenced", response: fixtures.FencedJSON(fixtures.AnalysisJSON(true, "algebra")), wantValid: true, wantRefined: "algebra"},
		{name: "missing keys use defaults", response: `{}`, wantValid: true, wantRefined: "Explain algebra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mocks.NewSuccessProvider(tt.response)
			a, err := rag.NewQueryAnalyzer(provider, agents(), zap.NewNop())
			require.NoError(t, err)

			got, err := a.AnalyzeQuery(testutil.TestContext(t), "Explain algebra")
			require.NoError(t, err)
			assert.Equal(t, "Explain algebra", got.OriginalQuery)
			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, tt.wantRefined, got.RefinedQuery)

			call := provider.GetLastCall()
			require.NotNil(t, call)
			assert.True(t, call.Request.JSONMode)
			assert.Contains(t, call.Prompt(), "Explain algebra")
		})
	}
}

func TestQueryAnalyzer_Errors(t *testing.T) {
	a, err := rag.NewQueryAnalyzer(mocks.NewErrorProvider(errUpstream), agents(), nil)
	require.NoError(t, err)
	_, err = a.AnalyzeQuery(context.Background(), "q")
	assert.ErrorIs(t, err, errUpstream)

	a, err = rag.NewQueryAnalyzer(mocks.NewSuccessProvider("not json"), agents(), nil)
	require.NoError(t, err)
	_, err = a.AnalyzeQuery(context.Background(), "q")
	assert.Error(t, err)

	_, err = rag.NewQueryAnalyzer(nil, agents(), nil)
	assert.Error(t, err)

	_, err = rag.NewQueryAnalyzer(mocks.NewMockProvider(), &rag.AgentsConfig{}, nil)
	assert.ErrorIs(t, err, rag.ErrPromptNotFound)
}

func TestEvaluator(t *testing.T) {
	provider := mocks.NewSuccessProvider(fixtures.EvaluationJSON(3, true))
	e, err := rag.NewEvaluator(provider, agents(), nil)
	require.NoError(t, err)

	retrieved := &rag.RetrievedInformation{KnowledgeBaseResults: []rag.RetrievedDocument{{Rank: 1, Content: "printing press"}}}
	got, err := e.EvaluateRetrieval(context.Background(), "algebra", &rag.QueryAnalysis{IsValid: true}, retrieved)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Score)
	assert.True(t, got.NeedsCorrection)
	assert.Contains(t, provider.GetLastCall().Prompt(), "printing press")
}

func TestEvaluator_Defaults(t *testing.T) {
	e, err := rag.NewEvaluator(mocks.NewSuccessProvider(`{"comment": "ok"}`), agents(), nil)
	require.NoError(t, err)

	got, err := e.EvaluateRetrieval(context.Background(), "algebra", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(rag.DefaultEvaluationScore), got.Score)
	assert.False(t, got.NeedsCorrection)
}

func TestRetriever_RetrieveInformation(t *testing.T) {
	searcher := mocks.NewMockSearcher(fixtures.AlgebraDocuments()...)
	r, err := rag.NewRetriever(searcher, mocks.NewMockProvider(), agents(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.MaxResults())

	analysis := &rag.QueryAnalysis{IsValid: true, RefinedQuery: "algebra basics"}
	got, err := r.RetrieveInformation(context.Background(), "Explain the basics of algebra", analysis, 0)
	require.NoError(t, err)

	assert.Equal(t, "Explain the basics of algebra", got.Query)
	assert.Equal(t, "algebra basics", got.SearchQuery)
	assert.Equal(t, rag.RetrievalQualityUnknown, got.RetrievalQuality)
	require.Len(t, got.KnowledgeBaseResults, 2)
	assert.Equal(t, 1, got.KnowledgeBaseResults[0].Rank)
	assert.Equal(t, "math/algebra-intro.md", got.KnowledgeBaseResults[0].Source)
	assert.Equal(t, rag.SourceTypeContent, got.KnowledgeBaseResults[1].SourceType)

	// After a correction the current query is already refined.
	got, err = r.RetrieveInformation(context.Background(), "linear equations", analysis, 1)
	require.NoError(t, err)
	assert.Equal(t, "linear equations", got.SearchQuery)
	assert.Equal(t, []string{"algebra basics", "linear equations"}, searcher.Queries())
}

func TestRetriever_SearchError(t *testing.T) {
	boom := errors.New("weaviate down")
	r, err := rag.NewRetriever(mocks.NewMockSearcher().WithError(boom), mocks.NewMockProvider(), agents(), nil)
	require.NoError(t, err)

	_, err = r.RetrieveInformation(context.Background(), "q", nil, 0)
	assert.ErrorIs(t, err, boom)
}

func TestRetriever_RefineQuery(t *testing.T) {
	provider := mocks.NewSuccessProvider(`  "linear equations in algebra"  `)
	r, err := rag.NewRetriever(mocks.NewMockSearcher(), provider, agents(), nil)
	require.NoError(t, err)

	retrieved := &rag.RetrievedInformation{KnowledgeBaseResults: []rag.RetrievedDocument{{Content: "printing press"}}}
	refined, err := r.RefineQuery(context.Background(), "x", retrieved, &rag.EvaluationResults{Score: 2, NeedsCorrection: true})
	require.NoError(t, err)
	assert.Equal(t, "linear equations in algebra", refined)

	prompt := provider.GetLastCall().Prompt()
	assert.Contains(t, prompt, "Original query: x")
	assert.Contains(t, prompt, "printing press")
}

func TestRetriever_RefineQueryErrors(t *testing.T) {
	r, err := rag.NewRetriever(mocks.NewMockSearcher(), mocks.NewSuccessProvider("   "), agents(), nil)
	require.NoError(t, err)
	_, err = r.RefineQuery(context.Background(), "x", nil, nil)
	assert.Error(t, err)

	r, err = rag.NewRetriever(mocks.NewMockSearcher(), mocks.NewErrorProvider(errUpstream), agents(), nil)
	require.NoError(t, err)
	_, err = r.RefineQuery(context.Background(), "x", nil, nil)
	assert.ErrorIs(t, err, errUpstream)

	_, err = rag.NewRetriever(nil, mocks.NewMockProvider(), agents(), nil)
	assert.Error(t, err)
}

func TestResponseGenerator(t *testing.T) {
	provider := mocks.NewSuccessProvider("Algebra is the study of symbols.")
	g, err := rag.NewResponseGenerator(provider, agents(), nil)
	require.NoError(t, err)

	analysis := &rag.QueryAnalysis{IsValid: true, RefinedQuery: "algebra"}
	retrieved := &rag.RetrievedInformation{KnowledgeBaseResults: []rag.RetrievedDocument{
		{Rank: 1, Content: "Algebra uses symbols.", Source: "algebra.md"},
	}}
	eval := &rag.EvaluationResults{Score: 8}

	got, err := g.GenerateResponse(context.Background(), "Explain algebra", analysis, retrieved, eval)
	require.NoError(t, err)
	assert.Equal(t, "Algebra is the study of symbols.", got.ResponseText)
	assert.Same(t, retrieved, got.RetrievedInformation)
	assert.Same(t, eval, got.EvaluationResults)
	assert.Same(t, analysis, got.QueryAnalysis)
	assert.Contains(t, provider.GetLastCall().Prompt(), "[1] (source: algebra.md)")
}

func TestResponseGenerator_TruncatesContext(t *testing.T) {
	provider := mocks.NewSuccessProvider("ok")
	g, err := rag.NewResponseGenerator(provider, agents(), nil,
		rag.WithTokenizer(tokenizer.NewEstimatorTokenizer("", 0)),
		rag.WithContextTokens(10))
	require.NoError(t, err)

	long := strings.Repeat("word ", 200)
	retrieved := &rag.RetrievedInformation{KnowledgeBaseResults: []rag.RetrievedDocument{{Rank: 1, Content: long, Source: "s"}}}
	_, err = g.GenerateResponse(context.Background(), "q", nil, retrieved, nil)
	require.NoError(t, err)

	prompt := provider.GetLastCall().Prompt()
	assert.NotContains(t, prompt, long)
	assert.Less(t, len(prompt), len(long))
}

func TestResponseGenerator_Error(t *testing.T) {
	g, err := rag.NewResponseGenerator(mocks.NewErrorProvider(errUpstream), agents(), nil)
	require.NoError(t, err)
	_, err = g.GenerateResponse(context.Background(), "q", nil, nil, nil)
	assert.ErrorIs(t, err, errUpstream)
}

func TestBasicResponseGenerator(t *testing.T) {
	g := rag.NewBasicResponseGenerator()
	retrieved := &rag.RetrievedInformation{KnowledgeBaseResults: []rag.RetrievedDocument{
		{Rank: 1, Content: "Algebra uses symbols.", Source: "algebra.md"},
	}}
	got, err := g.GenerateResponse(context.Background(), "q", nil, retrieved, nil)
	require.NoError(t, err)
	assert.Equal(t, "[1] Algebra uses symbols. (algebra.md)", got.ResponseText)

	got, err = g.GenerateResponse(context.Background(), "q", nil, &rag.RetrievedInformation{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "No relevant information was found.", got.ResponseText)

	_, err = g.GenerateResponse(context.Background(), "q", nil, nil, nil)
	assert.Error(t, err)
}
