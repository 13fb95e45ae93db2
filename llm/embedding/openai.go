package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
	"github.com/DCGM/semant-demo/llm/providers/openaicompat"
)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	MaxBatch   int
	Timeout    time.Duration
}

// OpenAIProvider implements embedding using the OpenAI embeddings API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *openai.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		cfg:    cfg,
		client: openai.NewClientWithConfig(cc),
		logger: logger.With(zap.String("component", "embedding"), zap.String("model", cfg.Model)),
	}
}

func (p *OpenAIProvider) Name() string { return "openai-embedding" }

func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vecs, err := p.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments splits documents into batches of at most MaxBatch inputs.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(documents))
	for start := 0; start < len(documents); start += p.cfg.MaxBatch {
		end := min(start+p.cfg.MaxBatch, len(documents))

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      documents[start:end],
			Model:      openai.EmbeddingModel(p.cfg.Model),
			Dimensions: p.cfg.Dimensions,
		})
		if err != nil {
			return nil, p.mapError(err)
		}
		if len(resp.Data) != end-start {
			return nil, &llm.Error{
				Code:     llm.ErrEmptyResponse,
				Message:  fmt.Sprintf("expected %d embeddings, got %d", end-start, len(resp.Data)),
				Provider: p.Name(),
			}
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vec := make([]float64, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float64(v)
			}
			out[start+d.Index] = vec
		}
	}

	p.logger.Debug("embedded documents", zap.Int("count", len(documents)))
	return out, nil
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return openaicompat.MapHTTPError(apiErr.HTTPStatusCode, apiErr.Message, p.Name())
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return openaicompat.MapHTTPError(reqErr.HTTPStatusCode, reqErr.Error(), p.Name())
	}
	return fmt.Errorf("create embeddings: %w", err)
}
