package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
	"github.com/DCGM/semant-demo/internal/cache"
	"github.com/DCGM/semant-demo/internal/database"
	"github.com/DCGM/semant-demo/internal/metrics"
	"github.com/DCGM/semant-demo/internal/server"
	"github.com/DCGM/semant-demo/internal/telemetry"
	"github.com/DCGM/semant-demo/llm/embedding"
	"github.com/DCGM/semant-demo/llm/providers/openaicompat"
	"github.com/DCGM/semant-demo/llm/retry"
	"github.com/DCGM/semant-demo/llm/tokenizer"
	"github.com/DCGM/semant-demo/orchestrator"
	"github.com/DCGM/semant-demo/rag"
	"github.com/DCGM/semant-demo/rag/loader"
	"github.com/DCGM/semant-demo/workflow"
)

const metricsNamespace = "semant"

// app 进程级依赖集合，由 newApp 组装、Close 统一释放
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	metrics   *metrics.Collector
	orch      *orchestrator.Orchestrator
	checks    []server.HealthCheck

	// 按注册的逆序关闭
	closers []func(context.Context) error
}

// newApp 组装 LLM、向量库、协作者、执行轨迹存储与编排器
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		a.telemetry = providers
		a.closers = append(a.closers, providers.Shutdown)
	}

	a.metrics = metrics.NewCollector(metricsNamespace, logger)

	store, err := newDocumentStore(ctx, cfg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	collab, err := newCollaborators(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		a.Close(ctx)
		return nil, err
	}

	history, err := newHistoryStore(ctx, cfg, logger, a)
	if err != nil {
		_ = store.Close()
		a.Close(ctx)
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithHistoryStore(history),
		orchestrator.WithRecorder(a.metrics),
	}
	if a.telemetry != nil {
		opts = append(opts, orchestrator.WithTracer(a.telemetry.Tracer("github.com/DCGM/semant-demo/orchestrator")))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		MaxCorrectionAttempts: cfg.Orchestrator.MaxCorrectionAttempts,
		WorkflowConfigPath:    cfg.Orchestrator.WorkflowConfigPath,
		MaxSteps:              cfg.Orchestrator.MaxSteps,
		RequestTimeout:        cfg.Orchestrator.RequestTimeout,
	}, collab, logger, opts...)
	if err != nil {
		_ = store.Close()
		a.Close(ctx)
		return nil, err
	}
	a.orch = orch
	a.closers = append(a.closers, func(context.Context) error { return orch.Close() })

	if ws, ok := store.(*rag.WeaviateStore); ok {
		a.checks = append(a.checks, server.CheckFunc{CheckName: "weaviate", Fn: ws.Ready})
	}
	return a, nil
}

// Close 逆序释放资源，返回第一个错误
func (a *app) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	a.closers = nil
	return first
}

// =============================================================================
// 🔧 组件构造
// =============================================================================

func newLLMProvider(cfg config.LLMConfig, logger *zap.Logger) *openaicompat.Provider {
	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	return openaicompat.New(openaicompat.Config{
		ProviderName:      cfg.Provider,
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		DefaultModel:      cfg.Model,
		Temperature:       float32(cfg.Temperature),
		MaxTokens:         cfg.MaxTokens,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             policy,
	}, logger)
}

func newEmbedder(cfg config.LLMConfig, logger *zap.Logger) *embedding.OpenAIProvider {
	return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.EmbeddingModel,
		Timeout: cfg.Timeout,
	}, logger)
}

func weaviateConfig(cfg config.WeaviateConfig) rag.WeaviateConfig {
	return rag.WeaviateConfig{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Scheme:           cfg.Scheme,
		APIKey:           cfg.APIKey,
		Collection:       cfg.Collection,
		TextProperty:     cfg.TextProperty,
		AutoCreateSchema: cfg.AutoCreateSchema,
		Timeout:          cfg.Timeout,
	}
}

// newDocumentStore 按配置创建知识库；memory 类型在启动时导入 documents_path
func newDocumentStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (rag.DocumentSearcher, error) {
	switch cfg.VectorStore.Type {
	case config.VectorStoreMemory:
		store := rag.NewMemoryStore(newEmbedder(cfg.LLM, logger), logger)
		if cfg.VectorStore.DocumentsPath == "" {
			logger.Warn("memory vector store has no documents_path; knowledge base is empty")
			return store, nil
		}
		stats, err := loader.Ingest(ctx, loader.NewLoaderRegistry(logger), store,
			[]string{cfg.VectorStore.DocumentsPath}, loader.DefaultBatchSize, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed memory vector store: %w", err)
		}
		logger.Info("memory vector store seeded", zap.Int("documents", stats.Documents))
		return store, nil

	case config.VectorStoreWeaviate, "":
		return rag.NewWeaviateStore(weaviateConfig(cfg.VectorStore.Weaviate), logger), nil

	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.VectorStore.Type)
	}
}

// newCollaborators 创建各阶段的协作者；代理配置缺失时使用内置提示词
func newCollaborators(cfg *config.Config, store rag.DocumentSearcher, logger *zap.Logger) (orchestrator.Collaborators, error) {
	agents, err := rag.LoadAgentsConfig(cfg.Orchestrator.AgentsConfigPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return orchestrator.Collaborators{}, err
		}
		logger.Warn("agents config not found, using built-in prompts",
			zap.String("path", cfg.Orchestrator.AgentsConfigPath))
		agents = rag.DefaultAgentsConfig()
	}

	provider := newLLMProvider(cfg.LLM, logger)

	analyzer, err := rag.NewQueryAnalyzer(provider, agents, logger)
	if err != nil {
		return orchestrator.Collaborators{}, err
	}
	retriever, err := rag.NewRetriever(store, provider, agents, logger)
	if err != nil {
		return orchestrator.Collaborators{}, err
	}
	evaluator, err := rag.NewEvaluator(provider, agents, logger)
	if err != nil {
		return orchestrator.Collaborators{}, err
	}
	generator, err := rag.NewResponseGenerator(provider, agents, logger,
		rag.WithTokenizer(tokenizer.New(tokenizer.KindTiktoken, cfg.LLM.Model, logger)),
		rag.WithContextTokens(cfg.LLM.ContextTokens),
	)
	if err != nil {
		return orchestrator.Collaborators{}, err
	}

	return orchestrator.Collaborators{
		Analyzer:       analyzer,
		Retriever:      retriever,
		Evaluator:      evaluator,
		Generator:      generator,
		BasicGenerator: rag.NewBasicResponseGenerator(),
		Searcher:       store,
	}, nil
}

// newHistoryStore 按 history.backend 选择执行轨迹存储，并注册关闭与就绪检查
func newHistoryStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, a *app) (workflow.HistoryStore, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendMemory, "":
		return workflow.NewMemoryHistoryStore(cfg.History.Capacity), nil

	case config.HistoryBackendRedis:
		cc := cache.DefaultConfig()
		cc.Addr = cfg.Redis.Addr
		cc.Password = cfg.Redis.Password
		cc.DB = cfg.Redis.DB
		cc.PoolSize = cfg.Redis.PoolSize
		cc.MinIdleConns = cfg.Redis.MinIdleConns
		if cfg.History.TTL > 0 {
			cc.TTL = cfg.History.TTL
		}
		m, err := cache.NewManager(ctx, cc, logger)
		if err != nil {
			return nil, fmt.Errorf("history backend redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return m.Close() })
		a.checks = append(a.checks, server.CheckFunc{CheckName: "redis", Fn: m.Ping})
		return m, nil

	case config.HistoryBackendDatabase:
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var opts []database.HistoryStoreOption
		if database.SupportsMigrations(cfg.Database.Driver) {
			if _, err := database.MigrateUp(initCtx, cfg.Database, logger); err != nil {
				return nil, fmt.Errorf("history backend database: %w", err)
			}
			opts = append(opts, database.WithManagedSchema())
		}

		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("history backend database: %w", err)
		}
		store, err := database.NewHistoryStore(initCtx, pool, logger, opts...)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("history backend database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.checks = append(a.checks, server.CheckFunc{CheckName: "database", Fn: pool.Ping})
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.History.Backend)
	}
}
