package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DCGM/semant-demo/llm"
	"github.com/DCGM/semant-demo/llm/retry"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName identifies the backend in logs and errors. Defaults to "openai".
	ProviderName string

	// APIKey is sent as a bearer token. Local servers such as Ollama accept any value.
	APIKey string

	// BaseURL is the API root including the version segment, e.g. "http://localhost:11434/v1".
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Temperature and MaxTokens apply when the request leaves them unset.
	Temperature float32
	MaxTokens   int

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// RequestsPerSecond caps outgoing calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// Retry overrides the default retry policy.
	Retry *retry.RetryPolicy
}

// Provider talks to any server that implements the OpenAI Chat Completions API.
type Provider struct {
	cfg     Config
	client  *openai.Client
	limiter *rate.Limiter
	retryer *retry.Retryer
	logger  *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger = logger.With(zap.String("component", "llm_provider"), zap.String("provider", cfg.ProviderName))
	return &Provider{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(cc),
		limiter: limiter,
		retryer: retry.NewBackoffRetryer(cfg.Retry, logger),
		logger:  logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

// Completion performs a non-streaming chat completion, retrying transient failures.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "chat request has no messages",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := p.buildRequest(req)
	start := time.Now()

	resp, err := retry.DoWithResult(ctx, p.retryer, func() (openai.ChatCompletionResponse, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, p.mapError(err)
		}
		out, err := p.client.CreateChatCompletion(ctx, body)
		if err != nil {
			return out, p.mapError(err)
		}
		return out, nil
	})
	if err != nil {
		p.logger.Warn("chat completion failed",
			zap.String("model", body.Model),
			zap.String("code", string(llm.CodeOf(err))),
			zap.String("trace_id", req.TraceID),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	p.logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.String("trace_id", req.TraceID),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return p.toChatResponse(resp), nil
}

func (p *Provider) buildRequest(req *llm.ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}

	body := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stop:        req.Stop,
	}
	if req.JSONMode {
		body.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return body
}

func (p *Provider) toChatResponse(resp openai.ChatCompletionResponse) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: string(c.FinishReason),
			Message: llm.Message{
				Role:    llm.Role(c.Message.Role),
				Content: c.Message.Content,
				Name:    c.Message.Name,
			},
		})
	}
	return &llm.ChatResponse{
		ID:       resp.ID,
		Provider: p.Name(),
		Model:    resp.Model,
		Choices:  choices,
		Usage: llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}
}

// mapError 将 go-openai 与网络错误映射为带重试标记的 llm.Error
func (p *Provider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return MapHTTPError(apiErr.HTTPStatusCode, apiErr.Message, p.Name())
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if len(reqErr.Body) > 0 {
			msg = string(reqErr.Body)
		}
		return MapHTTPError(reqErr.HTTPStatusCode, msg, p.Name())
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code:       llm.ErrUpstreamTimeout,
			Message:    err.Error(),
			HTTPStatus: http.StatusGatewayTimeout,
			Provider:   p.Name(),
		}
	}
	return &llm.Error{
		Code:       llm.ErrProviderUnavailable,
		Message:    fmt.Sprintf("request failed: %v", err),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   p.Name(),
	}
}

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error
func MapHTTPError(status int, msg, provider string) *llm.Error {
	e := &llm.Error{Message: msg, HTTPStatus: status, Provider: provider}
	switch {
	case status == http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case status == http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case status == http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = llm.ErrUpstreamError
		e.Retryable = true
	default:
		e.Code = llm.ErrInvalidRequest
	}
	return e
}
