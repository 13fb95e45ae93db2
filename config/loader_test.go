// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 2, cfg.Orchestrator.MaxCorrectionAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

llm:
  base_url: "http://llm.internal/v1"
  model: "qwen2.5"
  temperature: 0.2
  max_retries: 5

vector_store:
  type: memory
  documents_path: data/documents.yaml

orchestrator:
  max_correction_attempts: 3
  workflow_config_path: custom/workflow.yaml
  request_timeout: 45s

history:
  backend: redis
  ttl: 1h

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://llm.internal/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, VectorStoreMemory, cfg.VectorStore.Type)
	assert.Equal(t, "data/documents.yaml", cfg.VectorStore.DocumentsPath)
	assert.Equal(t, 3, cfg.Orchestrator.MaxCorrectionAttempts)
	assert.Equal(t, "custom/workflow.yaml", cfg.Orchestrator.WorkflowConfigPath)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.RequestTimeout)
	assert.Equal(t, HistoryBackendRedis, cfg.History.Backend)
	assert.Equal(t, time.Hour, cfg.History.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未在文件中出现的字段保留默认值
	assert.Equal(t, "config/agents.yaml", cfg.Orchestrator.AgentsConfigPath)
	assert.Equal(t, "localhost", cfg.VectorStore.Weaviate.Host)
	assert.Equal(t, "text", cfg.VectorStore.Weaviate.TextProperty)
}

func TestLoader_FileNotFound(t *testing.T) {
	// 文件不存在时使用默认值
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [bad"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: from-file\n"), 0o644))

	t.Setenv("SEMANT_LLM_MODEL", "from-env")
	t.Setenv("SEMANT_LLM_TIMEOUT", "90s")
	t.Setenv("SEMANT_LLM_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("SEMANT_ORCHESTRATOR_MAX_CORRECTION_ATTEMPTS", "4")
	t.Setenv("SEMANT_VECTOR_STORE_WEAVIATE_HOST", "weaviate.internal")
	t.Setenv("SEMANT_VECTOR_STORE_WEAVIATE_AUTO_CREATE_SCHEMA", "true")
	t.Setenv("SEMANT_LOG_OUTPUT_PATHS", "stdout, /var/log/semant.log")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model, "env wins over file")
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 2.5, cfg.LLM.RequestsPerSecond, 1e-9)
	assert.Equal(t, 4, cfg.Orchestrator.MaxCorrectionAttempts)
	assert.Equal(t, "weaviate.internal", cfg.VectorStore.Weaviate.Host)
	assert.True(t, cfg.VectorStore.Weaviate.AutoCreateSchema)
	assert.Equal(t, []string{"stdout", "/var/log/semant.log"}, cfg.Log.OutputPaths)
}

func TestLoader_CustomPrefix(t *testing.T) {
	t.Setenv("RAGTEST_SERVER_HTTP_PORT", "9000")

	cfg, err := NewLoader().WithEnvPrefix("RAGTEST").Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("SEMANT_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEMANT_SERVER_HTTP_PORT")
}

func TestLoader_WithValidator(t *testing.T) {
	cfg, err := NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	t.Setenv("SEMANT_ORCHESTRATOR_MAX_CORRECTION_ATTEMPTS", "0")
	_, err = NewLoader().WithValidator(func(c *Config) error { return c.Validate() }).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_correction_attempts")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: "invalid HTTP port"},
		{name: "bad temperature", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: "temperature"},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantErr: "max_retries"},
		{name: "negative steps", mutate: func(c *Config) { c.Orchestrator.MaxSteps = -1 }, wantErr: "max_steps"},
		{name: "unknown store", mutate: func(c *Config) { c.VectorStore.Type = "qdrant" }, wantErr: "unknown vector store type"},
		{name: "unknown history", mutate: func(c *Config) { c.History.Backend = "mongo" }, wantErr: "unknown history backend"},
		{
			name: "database history with bad driver",
			mutate: func(c *Config) {
				c.History.Backend = HistoryBackendDatabase
				c.Database.Driver = "oracle"
			},
			wantErr: "unsupported database driver",
		},
		{name: "database history with sqlite", mutate: func(c *Config) { c.History.Backend = HistoryBackendDatabase }},
		{name: "short jwt secret", mutate: func(c *Config) { c.Server.JWT.Secret = "short" }, wantErr: "jwt secret"},
		{name: "jwt secret", mutate: func(c *Config) { c.Server.JWT.Secret = strings.Repeat("k", 32) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "rag", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=rag sslmode=disable", d.DSN())

	d.Driver = "mysql"
	d.Port = 3306
	assert.Equal(t, "u:p@tcp(db:3306)/rag?parseTime=true", d.DSN())

	d.Driver = "sqlite"
	assert.Equal(t, "rag", d.DSN())

	d.Driver = "oracle"
	assert.Empty(t, d.DSN())
}

func TestJWTConfig_Enabled(t *testing.T) {
	assert.False(t, JWTConfig{Issuer: "semant"}.Enabled())
	assert.True(t, JWTConfig{Secret: "s"}.Enabled())
	assert.True(t, JWTConfig{PublicKey: "pem"}.Enabled())
}
