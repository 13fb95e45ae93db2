package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/orchestrator"
	"github.com/DCGM/semant-demo/workflow"
)

// =============================================================================
// 🎯 RAG HTTP API
// =============================================================================

// Processor 处理查询的编排器
type Processor interface {
	ProcessQuery(ctx context.Context, query string) orchestrator.QueryResult
	History(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error)
	Workflow() *workflow.Workflow[orchestrator.RequestState]
}

var _ Processor = (*orchestrator.Orchestrator)(nil)

// HealthCheck 就绪检查项
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc 将函数适配为 HealthCheck
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// QueryRequest POST /v1/query 请求体
type QueryRequest struct {
	Query string `json:"query"`
}

// GraphResponse GET /v1/graph 的 JSON 形式
type GraphResponse struct {
	Name             string                                                `json:"name"`
	Source           workflow.Source                                       `json:"source"`
	Entry            string                                                `json:"entry"`
	Nodes            []string                                              `json:"nodes"`
	Edges            []workflow.Edge                                       `json:"edges"`
	ConditionalEdges []workflow.ConditionalEdge[orchestrator.RequestState] `json:"conditional_edges"`
}

// HealthStatus 健康状态
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Workflow  string                 `json:"workflow,omitempty"`
	Source    workflow.Source        `json:"source,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Handler 组装路由
type Handler struct {
	proc     Processor
	logger   *zap.Logger
	recorder HTTPRecorder
	version  string
	limiter  *clientLimiter
	auth     *TokenVerifier

	mu     sync.RWMutex
	checks []HealthCheck
}

// HandlerOption 配置 Handler
type HandlerOption func(*Handler)

// WithHTTPRecorder 设置 HTTP 指标记录器
func WithHTTPRecorder(rec HTTPRecorder) HandlerOption {
	return func(h *Handler) { h.recorder = rec }
}

// WithVersion 设置 /health 报告的版本
func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// WithQueryRateLimit 对 POST /v1/query 按客户端 IP 限流；rps<=0 关闭
func WithQueryRateLimit(rps float64, burst int) HandlerOption {
	return func(h *Handler) {
		if rps > 0 {
			h.limiter = newClientLimiter(rps, burst)
		}
	}
}

// WithJWTAuth 要求 /v1/ 下的路由携带有效的 Bearer 令牌；v 为 nil 时不启用。
// /health、/ready 与 /metrics 始终开放。
func WithJWTAuth(v *TokenVerifier) HandlerOption {
	return func(h *Handler) { h.auth = v }
}

// WithHealthCheck 注册就绪检查
func WithHealthCheck(c HealthCheck) HandlerOption {
	return func(h *Handler) { h.checks = append(h.checks, c) }
}

// NewHandler 创建 HTTP 处理器
func NewHandler(proc Processor, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{proc: proc, logger: logger.With(zap.String("component", "http_api"))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterCheck 运行时追加就绪检查
func (h *Handler) RegisterCheck(c HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// Routes 返回带中间件的完整路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	protect := func(next http.HandlerFunc) http.HandlerFunc {
		if h.auth == nil {
			return next
		}
		return h.auth.wrap(next)
	}
	query := h.handleQuery
	if h.limiter != nil {
		query = h.limiter.wrap(query)
	}
	mux.HandleFunc("POST /v1/query", protect(query))
	mux.HandleFunc("GET /v1/executions/{id}", protect(h.handleExecution))
	mux.HandleFunc("GET /v1/graph", protect(h.handleGraph))
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return instrument(mux, h.recorder, h.logger)
}

func requestID(w http.ResponseWriter) string {
	return w.Header().Get(RequestIDHeader)
}

// handleQuery POST /v1/query
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body: "+err.Error(), nil, h.logger)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "query must not be empty", nil, h.logger)
		return
	}

	if sub := SubjectFrom(r.Context()); sub != "" {
		h.logger.Debug("query received", zap.String("subject", sub), zap.String("request_id", requestID(w)))
	}
	result := h.proc.ProcessQuery(r.Context(), req.Query)
	if !result.Success {
		// 失败时只返回致歉回复与执行 ID，原始错误已由编排器记录
		WriteError(w, http.StatusInternalServerError, CodeProcessingFailed, result.Response, result, h.logger)
		return
	}
	WriteSuccess(w, requestID(w), result)
}

// handleExecution GET /v1/executions/{id}
func (h *Handler) handleExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	hist, err := h.proc.History(r.Context(), id)
	switch {
	case errors.Is(err, workflow.ErrHistoryNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, "execution "+id+" not found", nil, nil)
	case err != nil:
		h.logger.Error("load execution history", zap.String("execution_id", id), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, CodeInternal, "failed to load execution history", nil, nil)
	default:
		WriteSuccess(w, requestID(w), hist)
	}
}

// handleGraph GET /v1/graph?format=json|ascii|mermaid
func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	wf := h.proc.Workflow()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		WriteSuccess(w, requestID(w), GraphResponse{
			Name:             wf.Name(),
			Source:           wf.Source(),
			Entry:            wf.Entry(),
			Nodes:            wf.Nodes(),
			Edges:            wf.Edges(),
			ConditionalEdges: wf.ConditionalEdges(),
		})
	case "ascii":
		writeText(w, workflow.RenderASCII(wf))
	case "mermaid":
		writeText(w, workflow.RenderMermaid(wf))
	default:
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "unknown graph format "+format, nil, nil)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleHealth GET /health 存活检查
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	wf := h.proc.Workflow()
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Workflow:  wf.Name(),
		Source:    wf.Source(),
	})
}

// handleReady GET /ready 执行所有就绪检查
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	healthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		result := CheckResult{Status: "pass", Latency: time.Since(start).String()}
		if err != nil {
			healthy = false
			result.Status = "fail"
			result.Message = err.Error()
			h.logger.Warn("readiness check failed", zap.String("check", check.Name()), zap.Error(err))
		}
		status.Checks[check.Name()] = result
	}

	if !healthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
