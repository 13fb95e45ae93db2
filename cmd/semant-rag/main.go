// =============================================================================
// semant-rag 主入口
// =============================================================================
// RAG 编排服务入口，包含 HTTP API、交互式对话、图可视化与知识库导入
//
// 使用方法:
//
//	semant-rag serve                        # 启动 HTTP 服务
//	semant-rag serve --config config.yaml   # 指定配置文件
//	semant-rag chat                         # 交互式对话
//	semant-rag graph --format mermaid       # 输出编译后的工作流图
//	semant-rag validate config/workflow.yaml
//	semant-rag ingest data/                 # 导入文档到向量库
//	semant-rag version                      # 显示版本信息
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DCGM/semant-demo/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "chat":
		err = runChat(os.Args[2:])
	case "graph":
		err = runGraph(os.Args[2:], os.Stdout)
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "ingest":
		err = runIngest(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:], os.Stdout)
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// loadConfig 按 默认值 → YAML → 环境变量 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configFlag 每个子命令共用的 --config 参数
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv("SEMANT_CONFIG"), "Path to config file")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("semant-rag %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`semant-rag - self-correcting RAG orchestration engine

Usage:
  semant-rag <command> [options]

Commands:
  serve     Start the HTTP API server
  chat      Interactive question answering in the terminal
  graph     Print the compiled workflow graph
  validate  Check a workflow YAML file for defects
  ingest    Load documents into the configured vector store
  migrate   Apply (up) or show (version) the execution-history schema
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML), or SEMANT_CONFIG

Options for 'graph':
  --format <ascii|mermaid>   Output format (default ascii)

Options for 'ingest':
  --batch <n>       Documents per write (default 64)
  --dry-run         Load and count documents without writing them

Chat commands:
  /visualize   Show the workflow graph
  /sources     Show the sources behind the last answer
  /eval        Show the evaluation of the last retrieval
  /quit        Leave the chat

Examples:
  semant-rag serve --config /etc/semant/config.yaml
  semant-rag graph --format mermaid > graph.mmd
  semant-rag validate config/workflow.yaml
  semant-rag ingest --config config.yaml data/
  semant-rag migrate --config config.yaml up
  semant-rag version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
