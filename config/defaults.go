// =============================================================================
// 📦 semant-rag 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// Vector store types.
const (
	VectorStoreWeaviate = "weaviate"
	VectorStoreMemory   = "memory"
)

// History backends.
const (
	HistoryBackendMemory   = "memory"
	HistoryBackendRedis    = "redis"
	HistoryBackendDatabase = "database"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		LLM:          DefaultLLMConfig(),
		VectorStore:  DefaultVectorStoreConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		History:      DefaultHistoryConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		QueryRateLimit:  5,
		QueryBurst:      10,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置（本地 Ollama）
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "ollama",
		BaseURL:        "http://localhost:11434/v1",
		Model:          "llama3.1",
		EmbeddingModel: "nomic-embed-text",
		Temperature:    0,
		MaxTokens:      1024,
		Timeout:        2 * time.Minute,
		MaxRetries:     3,
		ContextTokens:  3000,
	}
}

// DefaultVectorStoreConfig 返回默认向量存储配置
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Type: VectorStoreWeaviate,
		Weaviate: WeaviateConfig{
			Host:             "localhost",
			Port:             8080,
			Scheme:           "http",
			Collection:       "Documents",
			TextProperty:     "text",
			AutoCreateSchema: false,
			Timeout:          30 * time.Second,
		},
	}
}

// DefaultOrchestratorConfig 返回默认编排配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxCorrectionAttempts: 2,
		WorkflowConfigPath:    "config/workflow.yaml",
		AgentsConfigPath:      "config/agents.yaml",
		MaxSteps:              100,
	}
}

// DefaultHistoryConfig 返回默认执行轨迹配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:  HistoryBackendMemory,
		Capacity: 1000,
		TTL:      24 * time.Hour,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "semant",
		Password:        "",
		Name:            "semant-rag.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "semant-rag",
		SampleRate:   0.1,
	}
}
