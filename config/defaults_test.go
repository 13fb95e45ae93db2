package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, VectorStoreConfig{}, cfg.VectorStore)
	assert.NotEqual(t, OrchestratorConfig{}, cfg.Orchestrator)
	assert.NotEqual(t, HistoryConfig{}, cfg.History)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.NotEmpty(t, cfg.Model)
	assert.NotEmpty(t, cfg.EmbeddingModel)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 3000, cfg.ContextTokens)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestDefaultVectorStoreConfig(t *testing.T) {
	cfg := DefaultVectorStoreConfig()
	assert.Equal(t, VectorStoreWeaviate, cfg.Type)
	assert.Equal(t, "http", cfg.Weaviate.Scheme)
	assert.Equal(t, "text", cfg.Weaviate.TextProperty)
	assert.False(t, cfg.Weaviate.AutoCreateSchema)
}

func TestDefaultOrchestratorConfig(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	assert.Equal(t, 2, cfg.MaxCorrectionAttempts)
	assert.Equal(t, "config/workflow.yaml", cfg.WorkflowConfigPath)
	assert.Equal(t, "config/agents.yaml", cfg.AgentsConfigPath)
	assert.Equal(t, 100, cfg.MaxSteps)
	assert.Zero(t, cfg.RequestTimeout)
}

func TestDefaultHistoryConfig(t *testing.T) {
	cfg := DefaultHistoryConfig()
	assert.Equal(t, HistoryBackendMemory, cfg.Backend)
	assert.Equal(t, 1000, cfg.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "semant-rag.db", cfg.DSN())
	assert.Equal(t, 25, cfg.MaxOpenConns)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "semant-rag", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 1e-9)
}
