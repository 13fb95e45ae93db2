package orchestrator

import "github.com/DCGM/semant-demo/workflow"

// DefaultMaxCorrectionAttempts 纠错循环的默认上限
const DefaultMaxCorrectionAttempts = 2

// Branch keys returned by the correction router.
const (
	BranchCorrect = "correct"
	BranchProceed = "proceed"
)

// RouterShouldCorrect 配置中引用纠错路由器的名称
const RouterShouldCorrect = "should_correct"

// ShouldCorrect 返回纠错路由器：NeedsCorrection 且尚未达到上限时返回 "correct"。
// limit <= 0 时使用 DefaultMaxCorrectionAttempts。
func ShouldCorrect(limit int) workflow.Router[RequestState] {
	if limit <= 0 {
		limit = DefaultMaxCorrectionAttempts
	}
	return func(s RequestState) string {
		if s.NeedsCorrection && s.CorrectionAttempts < limit {
			return BranchCorrect
		}
		return BranchProceed
	}
}

// NewRouterRegistry 按名称注册的路由器
func NewRouterRegistry(maxCorrectionAttempts int) map[string]workflow.Router[RequestState] {
	return map[string]workflow.Router[RequestState]{
		RouterShouldCorrect: ShouldCorrect(maxCorrectionAttempts),
	}
}
