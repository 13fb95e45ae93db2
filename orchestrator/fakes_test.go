package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DCGM/semant-demo/rag"
)

var errCollaborator = errors.New("collaborator unavailable")

type fakeAnalyzer struct {
	err   error
	panic bool
	delay time.Duration
}

func (f *fakeAnalyzer) AnalyzeQuery(_ context.Context, query string) (*rag.QueryAnalysis, error) {
	time.Sleep(f.delay)
	if f.panic {
		panic("analyzer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &rag.QueryAnalysis{OriginalQuery: query, IsValid: true, RefinedQuery: query}, nil
}

type fakeRetriever struct {
	mu        sync.Mutex
	err       error
	refineErr error
	queries   []string
	attempts  []int
}

func (f *fakeRetriever) RetrieveInformation(_ context.Context, query string, _ *rag.QueryAnalysis, attempts int) (*rag.RetrievedInformation, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.attempts = append(f.attempts, attempts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &rag.RetrievedInformation{
		Query:                query,
		SearchQuery:          query,
		KnowledgeBaseResults: []rag.RetrievedDocument{{Rank: 1, Content: "about " + query, Source: "kb", SourceType: rag.SourceTypeContent, RelevanceScore: 0.9}},
		RetrievalQuality:     rag.RetrievalQualityUnknown,
	}, nil
}

func (f *fakeRetriever) RefineQuery(_ context.Context, original string, _ *rag.RetrievedInformation, _ *rag.EvaluationResults) (string, error) {
	if f.refineErr != nil {
		return "", f.refineErr
	}
	return original + " (refined)", nil
}

func (f *fakeRetriever) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// scriptedEvaluator 按顺序返回 needs_correction；脚本用完后重复最后一个值
type scriptedEvaluator struct {
	mu     sync.Mutex
	script []bool
	calls  int
	err    error
}

func (f *scriptedEvaluator) EvaluateRetrieval(_ context.Context, query string, _ *rag.QueryAnalysis, _ *rag.RetrievedInformation) (*rag.EvaluationResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	needs := false
	if len(f.script) > 0 {
		i := f.calls - 1
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		needs = f.script[i]
	}
	score := 8.0
	if needs {
		score = 3
	}
	return &rag.EvaluationResults{Query: query, Score: score, NeedsCorrection: needs}, nil
}

func (f *scriptedEvaluator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGenerator struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeGenerator) GenerateResponse(_ context.Context, query string, analysis *rag.QueryAnalysis, retrieved *rag.RetrievedInformation, evaluation *rag.EvaluationResults) (*rag.GeneratedResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &rag.GeneratedResponse{
		Query:                query,
		ResponseText:         "answer: " + query,
		QueryAnalysis:        analysis,
		RetrievedInformation: retrieved,
		EvaluationResults:    evaluation,
	}, nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSearcher struct {
	mu     sync.Mutex
	closed int
	err    error
}

func (f *fakeSearcher) SimilaritySearch(context.Context, string, int) ([]rag.Document, error) {
	return nil, nil
}

func (f *fakeSearcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.err
}

type fixture struct {
	analyzer  *fakeAnalyzer
	retriever *fakeRetriever
	evaluator *scriptedEvaluator
	generator *fakeGenerator
	searcher  *fakeSearcher
}

func newFixture(script ...bool) *fixture {
	return &fixture{
		analyzer:  &fakeAnalyzer{},
		retriever: &fakeRetriever{},
		evaluator: &scriptedEvaluator{script: script},
		generator: &fakeGenerator{},
		searcher:  &fakeSearcher{},
	}
}

func (f *fixture) collaborators() Collaborators {
	return Collaborators{
		Analyzer:       f.analyzer,
		Retriever:      f.retriever,
		Evaluator:      f.evaluator,
		Generator:      f.generator,
		BasicGenerator: rag.NewBasicResponseGenerator(),
		Searcher:       f.searcher,
	}
}
