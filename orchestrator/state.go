package orchestrator

import "github.com/DCGM/semant-demo/rag"

// RequestState 单次请求在各阶段之间传递的状态。
// 每个请求独占一份，不在并发请求间共享。
type RequestState struct {
	Query                string                    `json:"query"`
	QueryAnalysis        *rag.QueryAnalysis        `json:"query_analysis,omitempty"`
	RetrievedInformation *rag.RetrievedInformation `json:"retrieved_information,omitempty"`
	EvaluationResults    *rag.EvaluationResults    `json:"evaluation_results,omitempty"`
	ResponseGenerated    *rag.GeneratedResponse    `json:"response_generated,omitempty"`
	FinalResponse        string                    `json:"final_response"`
	NeedsCorrection      bool                      `json:"needs_correction"`
	CorrectionAttempts   int                       `json:"correction_attempts"`
	Error                string                    `json:"error,omitempty"`
}

// NewRequestState 由原始查询构造初始状态
func NewRequestState(query string) RequestState {
	return RequestState{Query: query}
}

// StateUpdate 阶段返回的部分更新，nil 字段表示不修改
type StateUpdate struct {
	Query                *string
	QueryAnalysis        *rag.QueryAnalysis
	RetrievedInformation *rag.RetrievedInformation
	EvaluationResults    *rag.EvaluationResults
	ResponseGenerated    *rag.GeneratedResponse
	FinalResponse        *string
	NeedsCorrection      *bool
	CorrectionAttempts   *int
	Error                *string
}

// Apply 按字段 last-writer-wins 合并。CorrectionAttempts 只增不减。
func (u StateUpdate) Apply(s *RequestState) {
	if u.Query != nil {
		s.Query = *u.Query
	}
	if u.QueryAnalysis != nil {
		s.QueryAnalysis = u.QueryAnalysis
	}
	if u.RetrievedInformation != nil {
		s.RetrievedInformation = u.RetrievedInformation
	}
	if u.EvaluationResults != nil {
		s.EvaluationResults = u.EvaluationResults
	}
	if u.ResponseGenerated != nil {
		s.ResponseGenerated = u.ResponseGenerated
	}
	if u.FinalResponse != nil {
		s.FinalResponse = *u.FinalResponse
	}
	if u.NeedsCorrection != nil {
		s.NeedsCorrection = *u.NeedsCorrection
	}
	if u.CorrectionAttempts != nil && *u.CorrectionAttempts > s.CorrectionAttempts {
		s.CorrectionAttempts = *u.CorrectionAttempts
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
}

func ptr[T any](v T) *T { return &v }

func errorOnly(msg string) StateUpdate {
	return StateUpdate{Error: ptr(msg)}
}
