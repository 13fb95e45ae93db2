package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 semant-rag 的完整配置。yaml 标签对应配置文件，
// env 标签逐级拼接成环境变量名，例如 SEMANT_VECTOR_STORE_WEAVIATE_HOST。
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store" env:"VECTOR_STORE"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	History      HistoryConfig      `yaml:"history" env:"HISTORY"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Database     DatabaseConfig     `yaml:"database" env:"DATABASE"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 查询 API
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// QueryRateLimit 每个客户端 IP 在 /v1/query 上的每秒请求数，0 表示不限
	QueryRateLimit float64 `yaml:"query_rate_limit" env:"QUERY_RATE_LIMIT"`
	QueryBurst     int     `yaml:"query_burst" env:"QUERY_BURST"`

	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig /v1/ 路由的 Bearer 认证；Secret 用于 HS256，PublicKey（PEM）用于 RS256，都为空时关闭
type JWTConfig struct {
	Secret    string `yaml:"secret" env:"SECRET"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

func (j JWTConfig) Enabled() bool { return j.Secret != "" || j.PublicKey != "" }

// LLMConfig OpenAI 兼容端点（OpenAI、Ollama、vLLM 等），对话与嵌入共用
type LLMConfig struct {
	Provider          string        `yaml:"provider" env:"PROVIDER"` // 仅用于日志和错误
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"` // 例如 http://localhost:11434/v1
	Model             string        `yaml:"model" env:"MODEL"`
	EmbeddingModel    string        `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	Temperature       float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens         int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries        int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"` // 0 表示不限
	ContextTokens     int           `yaml:"context_tokens" env:"CONTEXT_TOKENS"`           // 生成阶段检索上下文的 token 预算
}

// VectorStoreConfig 知识库。memory 类型在启动时导入 DocumentsPath
type VectorStoreConfig struct {
	Type          string         `yaml:"type" env:"TYPE"`
	DocumentsPath string         `yaml:"documents_path" env:"DOCUMENTS_PATH"`
	Weaviate      WeaviateConfig `yaml:"weaviate" env:"WEAVIATE"`
}

type WeaviateConfig struct {
	Host             string        `yaml:"host" env:"HOST"`
	Port             int           `yaml:"port" env:"PORT"`
	Scheme           string        `yaml:"scheme" env:"SCHEME"`
	APIKey           string        `yaml:"api_key" env:"API_KEY"`
	Collection       string        `yaml:"collection" env:"COLLECTION"`
	TextProperty     string        `yaml:"text_property" env:"TEXT_PROPERTY"`
	AutoCreateSchema bool          `yaml:"auto_create_schema" env:"AUTO_CREATE_SCHEMA"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// OrchestratorConfig 工作流编排
type OrchestratorConfig struct {
	MaxCorrectionAttempts int           `yaml:"max_correction_attempts" env:"MAX_CORRECTION_ATTEMPTS"`
	WorkflowConfigPath    string        `yaml:"workflow_config_path" env:"WORKFLOW_CONFIG_PATH"`
	AgentsConfigPath      string        `yaml:"agents_config_path" env:"AGENTS_CONFIG_PATH"`
	MaxSteps              int           `yaml:"max_steps" env:"MAX_STEPS"`             // 单次请求最多执行的节点数
	RequestTimeout        time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"` // 0 表示不限
}

// HistoryConfig 执行轨迹后端：memory / redis / database
type HistoryConfig struct {
	Backend  string        `yaml:"backend" env:"BACKEND"`
	Capacity int           `yaml:"capacity" env:"CAPACITY"` // memory
	TTL      time.Duration `yaml:"ttl" env:"TTL"`           // redis
}

type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig history.backend=database 时使用；sqlite 的 Name 为文件路径
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN 未知驱动返回空串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		return d.Name
	}
	return ""
}

type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate 汇总所有问题后一次性返回
func (c *Config) Validate() error {
	var problems []string
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	check(c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535, "invalid HTTP port")
	check(c.LLM.Temperature < 0 || c.LLM.Temperature > 2, "temperature must be between 0 and 2")
	check(c.LLM.MaxRetries < 0, "max_retries must not be negative")
	check(c.Orchestrator.MaxCorrectionAttempts <= 0, "max_correction_attempts must be positive")
	check(c.Orchestrator.MaxSteps < 0, "max_steps must not be negative")
	check(c.Server.JWT.Secret != "" && len(c.Server.JWT.Secret) < 32, "jwt secret must be at least 32 bytes")

	switch c.VectorStore.Type {
	case VectorStoreWeaviate, VectorStoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown vector store type %q", c.VectorStore.Type))
	}

	switch c.History.Backend {
	case HistoryBackendMemory, HistoryBackendRedis:
	case HistoryBackendDatabase:
		check(c.Database.DSN() == "", fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	default:
		problems = append(problems, fmt.Sprintf("unknown history backend %q", c.History.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(problems, "; "))
	}
	return nil
}
