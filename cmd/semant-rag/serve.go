package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DCGM/semant-demo/internal/server"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting semant-rag",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	verifier, err := server.NewTokenVerifier(cfg.Server.JWT, logger)
	if err != nil {
		return err
	}
	if verifier != nil {
		logger.Info("bearer token authentication enabled for /v1/")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	handler := server.NewHandler(a.orch, logger,
		server.WithJWTAuth(verifier),
		server.WithHTTPRecorder(a.metrics),
		server.WithVersion(Version),
		server.WithQueryRateLimit(cfg.Server.QueryRateLimit, cfg.Server.QueryBurst),
	)
	for _, c := range a.checks {
		handler.RegisterCheck(c)
	}

	srv := server.NewManager(handler.Routes(), server.ConfigFrom(cfg.Server), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		// 启动时探测一次依赖，失败只告警，/ready 会持续反映状态
		checkCtx, cancel := context.WithTimeout(gctx, 10*time.Second)
		defer cancel()
		for _, c := range a.checks {
			if err := c.Check(checkCtx); err != nil {
				logger.Warn("dependency not ready", zap.String("check", c.Name()), zap.Error(err))
			}
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	// 服务器已停止接收请求，再释放编排器与存储
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if closeErr := a.Close(closeCtx); closeErr != nil && err == nil {
		err = closeErr
	}

	logger.Info("semant-rag stopped")
	return err
}
