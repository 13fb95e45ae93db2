package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/rag"
	"github.com/DCGM/semant-demo/workflow"
)

const tracerName = "github.com/DCGM/semant-demo/orchestrator"

// Config 编排器配置
type Config struct {
	MaxCorrectionAttempts int
	WorkflowConfigPath    string
	MaxSteps              int
	RequestTimeout        time.Duration
}

// QueryResult ProcessQuery 的结构化结果
type QueryResult struct {
	Success              bool                      `json:"success"`
	ExecutionID          string                    `json:"execution_id"`
	Query                string                    `json:"query"`
	Response             string                    `json:"response"`
	ResponseData         *rag.GeneratedResponse    `json:"response_data,omitempty"`
	QueryAnalysis        *rag.QueryAnalysis        `json:"query_analysis,omitempty"`
	RetrievedInformation *rag.RetrievedInformation `json:"retrieved_information,omitempty"`
	EvaluationResults    *rag.EvaluationResults    `json:"evaluation_results,omitempty"`
	CorrectionAttempts   int                       `json:"correction_attempts"`
	// Error 阶段降级时为该阶段的错误信息；运行器失败时为 ErrCodeProcessingFailed
	Error string `json:"error,omitempty"`

	// Err 运行器返回的原始错误，仅用于日志
	Err error `json:"-"`
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithHistoryStore 保存每次请求的节点轨迹
func WithHistoryStore(store workflow.HistoryStore) Option {
	return func(o *Orchestrator) { o.history = store }
}

// WithRecorder 设置指标接收者
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) { o.recorder = rec }
}

// WithTracer 设置请求级 span 使用的 tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// Orchestrator 驱动 RAG 请求经过编译好的工作流。
// 工作流与注册表在构造时生成，之后只读，可被并发请求共享。
type Orchestrator struct {
	cfg      Config
	wf       *workflow.Workflow[RequestState]
	runner   *workflow.Runner[RequestState]
	searcher rag.DocumentSearcher
	history  workflow.HistoryStore
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New 构建阶段与路由注册表并编译工作流；内置拓扑也无法编译时返回错误
func New(cfg Config, c Collaborators, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCorrectionAttempts <= 0 {
		cfg.MaxCorrectionAttempts = DefaultMaxCorrectionAttempts
	}

	o := &Orchestrator{
		cfg:      cfg,
		searcher: c.Searcher,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.recorder == nil {
		o.recorder = NopRecorder{}
	}
	if o.history == nil {
		o.history = workflow.NewMemoryHistoryStore(0)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	stages := NewStageRegistry(c, logger, o.recorder)
	routers := NewRouterRegistry(cfg.MaxCorrectionAttempts)
	wf, err := BuildWorkflow(cfg.WorkflowConfigPath, stages, routers, logger)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	o.wf = wf
	o.recorder.SetWorkflowSource(wf.Name(), wf.Source())

	runnerOpts := []workflow.RunnerOption{workflow.WithObserver(o.recorder)}
	if cfg.MaxSteps > 0 {
		runnerOpts = append(runnerOpts, workflow.WithMaxSteps(cfg.MaxSteps))
	}
	o.runner = workflow.NewRunner[RequestState](logger, runnerOpts...)

	o.logger.Info("orchestrator ready",
		zap.String("workflow", wf.Name()),
		zap.String("source", string(wf.Source())),
		zap.Int("max_correction_attempts", cfg.MaxCorrectionAttempts))
	return o, nil
}

// Workflow 返回编译好的工作流（只读）
func (o *Orchestrator) Workflow() *workflow.Workflow[RequestState] { return o.wf }

// MaxCorrectionAttempts 生效的纠错上限
func (o *Orchestrator) MaxCorrectionAttempts() int { return o.cfg.MaxCorrectionAttempts }

// History 按执行 ID 查询节点轨迹
func (o *Orchestrator) History(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error) {
	return o.history.Get(ctx, executionID)
}

// ProcessQuery 运行一次完整的 RAG 请求。
// 阶段错误已在阶段内部降级；只有运行器自身的失败才会返回 Success=false。
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) QueryResult {
	executionID := uuid.NewString()
	start := time.Now()

	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.process_query",
		trace.WithAttributes(
			attribute.String("execution.id", executionID),
			attribute.String("workflow.name", o.wf.Name()),
			attribute.String("workflow.source", string(o.wf.Source())),
		))
	defer span.End()

	history := workflow.NewExecutionHistory(executionID, o.wf.Name(), o.wf.Source())
	history.SetMetadata("query", query)

	log := o.logger.With(zap.String("execution_id", executionID))
	log.Info("processing query", zap.String("query", query))

	final, err := o.runner.RunWithHistory(ctx, o.wf, NewRequestState(query), history)
	history.Complete(err)
	if saveErr := o.history.Save(context.WithoutCancel(ctx), history); saveErr != nil {
		log.Warn("failed to save execution history", zap.Error(saveErr))
	}

	d := time.Since(start)
	o.recorder.ObserveRequest(err == nil, d)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("error processing query", zap.Error(err), zap.Duration("duration", d))
		return QueryResult{
			Success:     false,
			ExecutionID: executionID,
			Query:       query,
			Response:    ProcessingApology,
			Error:       ErrCodeProcessingFailed,
			Err:         err,
		}
	}

	o.recorder.ObserveCorrections(final.CorrectionAttempts)
	span.SetAttributes(attribute.Int("rag.correction_attempts", final.CorrectionAttempts))
	span.SetStatus(codes.Ok, "")
	log.Info("query processed",
		zap.Strings("path", history.Path()),
		zap.Int("correction_attempts", final.CorrectionAttempts),
		zap.Duration("duration", d))

	result := QueryResult{
		Success:              true,
		ExecutionID:          executionID,
		Query:                final.Query,
		ResponseData:         final.ResponseGenerated,
		QueryAnalysis:        final.QueryAnalysis,
		RetrievedInformation: final.RetrievedInformation,
		EvaluationResults:    final.EvaluationResults,
		CorrectionAttempts:   final.CorrectionAttempts,
		Error:                final.Error,
	}
	if final.ResponseGenerated != nil {
		result.Response = final.ResponseGenerated.ResponseText
	}
	return result
}

// Close 释放向量库句柄；多次调用只关闭一次
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		if o.searcher == nil {
			return
		}
		if err := o.searcher.Close(); err != nil && !errors.Is(err, rag.ErrStoreClosed) {
			o.closeErr = fmt.Errorf("close document store: %w", err)
			return
		}
		o.logger.Info("document store closed")
	})
	return o.closeErr
}
