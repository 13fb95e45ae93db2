package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
	"github.com/DCGM/semant-demo/internal/database"
	"github.com/DCGM/semant-demo/orchestrator"
	"github.com/DCGM/semant-demo/rag"
	"github.com/DCGM/semant-demo/rag/loader"
	"github.com/DCGM/semant-demo/workflow"
	"github.com/DCGM/semant-demo/workflow/dsl"
)

// errInvalidWorkflow validate 发现问题时返回，使进程以非零状态退出
var errInvalidWorkflow = errors.New("workflow config is invalid")

// =============================================================================
// 🗺️ graph 命令
// =============================================================================

func runGraph(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	configPath := configFlag(fs)
	format := fs.String("format", "ascii", "Output format: ascii or mermaid")
	workflowPath := fs.String("workflow", "", "Workflow YAML (overrides orchestrator.workflow_config_path)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *workflowPath != "" {
		cfg.Orchestrator.WorkflowConfigPath = *workflowPath
	}

	logger := initLogger(config.LogConfig{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	defer func() { _ = logger.Sync() }()

	wf, err := compileOffline(cfg.Orchestrator, logger)
	if err != nil {
		return err
	}
	return renderGraph(out, wf, *format)
}

// compileOffline 编译工作流而不连接任何外部服务；阶段只用于名称解析
func compileOffline(cfg config.OrchestratorConfig, logger *zap.Logger) (*workflow.Workflow[orchestrator.RequestState], error) {
	stages := orchestrator.NewStageRegistry(orchestrator.Collaborators{}, logger, nil)
	routers := orchestrator.NewRouterRegistry(cfg.MaxCorrectionAttempts)
	return orchestrator.BuildWorkflow(cfg.WorkflowConfigPath, stages, routers, logger)
}

func renderGraph[S any](out io.Writer, wf *workflow.Workflow[S], format string) error {
	switch format {
	case "ascii", "":
		_, err := fmt.Fprint(out, workflow.RenderASCII(wf))
		return err
	case "mermaid":
		_, err := fmt.Fprint(out, workflow.RenderMermaid(wf))
		return err
	default:
		return fmt.Errorf("unknown graph format %q (supported: ascii, mermaid)", format)
	}
}

// =============================================================================
// ✅ validate 命令
// =============================================================================

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	maxCorrections := fs.Int("max-corrections", orchestrator.DefaultMaxCorrectionAttempts, "Correction limit used by the router")
	_ = fs.Parse(args)

	path := config.DefaultOrchestratorConfig().WorkflowConfigPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	return validateWorkflow(path, *maxCorrections, out)
}

// validateWorkflow 打印结构问题与编译错误；二者皆无时打印 OK
func validateWorkflow(path string, maxCorrections int, out io.Writer) error {
	cfg, err := dsl.Load(path)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return errInvalidWorkflow
	}

	if defects := dsl.Defects(cfg); len(defects) > 0 {
		for _, d := range defects {
			fmt.Fprintf(out, "%s: %v\n", path, d)
		}
		return errInvalidWorkflow
	}

	stages := orchestrator.NewStageRegistry(orchestrator.Collaborators{}, nil, nil)
	routers := orchestrator.NewRouterRegistry(maxCorrections)
	wf, err := dsl.Compile(cfg, stages, routers)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return errInvalidWorkflow
	}

	fmt.Fprintf(out, "%s: OK (workflow %q, %d nodes, entry %s)\n", path, wf.Name(), len(wf.Nodes()), wf.Entry())
	return nil
}

// =============================================================================
// 📥 ingest 命令
// =============================================================================

// discardIndexer --dry-run 时只统计不写入
type discardIndexer struct{}

func (discardIndexer) AddDocuments(context.Context, []rag.Document) error { return nil }

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := configFlag(fs)
	batch := fs.Int("batch", loader.DefaultBatchSize, "Documents per write")
	dryRun := fs.Bool("dry-run", false, "Load and count documents without writing them")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("no input paths given")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var idx loader.Indexer = discardIndexer{}
	switch {
	case *dryRun:
	case cfg.VectorStore.Type == config.VectorStoreMemory:
		// 内存库随进程消失，这里只验证文档能被嵌入
		store := rag.NewMemoryStore(newEmbedder(cfg.LLM, logger), logger)
		defer func() { _ = store.Close() }()
		idx = store
	default:
		wc := weaviateConfig(cfg.VectorStore.Weaviate)
		wc.AutoCreateSchema = true
		store := rag.NewWeaviateStore(wc, logger)
		defer func() { _ = store.Close() }()
		if err := store.Ready(ctx); err != nil {
			return fmt.Errorf("weaviate not ready: %w", err)
		}
		idx = store
	}

	stats, err := loader.Ingest(ctx, loader.NewLoaderRegistry(logger), idx, fs.Args(), *batch, logger)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d documents from %d paths in %d batches (%s)\n",
		stats.Documents, stats.Files, stats.Batches, stats.Duration)
	return nil
}

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := configFlag(fs)
	_ = fs.Parse(args)

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	if action != "up" && action != "version" {
		return fmt.Errorf("unknown migrate action %q (want up or version)", action)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !database.SupportsMigrations(cfg.Database.Driver) {
		fmt.Fprintf(out, "driver %s has no versioned migrations; the schema is created on startup\n", cfg.Database.Driver)
		return nil
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mg, err := database.NewMigrator(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()

	if action == "up" {
		v, err := mg.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s schema at version %d\n", cfg.Database.Driver, v)
		return nil
	}
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s schema version %d (dirty=%t)\n", cfg.Database.Driver, v, dirty)
	return nil
}
