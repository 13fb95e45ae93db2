package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
)

// ErrServerClosed Shutdown 之后再次 Start
var ErrServerClosed = errors.New("server is closed")

// Config http.Server 参数
type Config struct {
	Addr           string        `yaml:"addr" json:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"` // 需覆盖一次完整的纠错循环
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes"`

	// ShutdownTimeout 等待进行中的查询完成的上限
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFrom 端口来自 server.http_port，超时未设置时取默认值
func ConfigFrom(cfg config.ServerConfig) Config {
	c := DefaultConfig()
	c.Addr = fmt.Sprintf(":%d", cfg.HTTPPort)
	for dst, src := range map[*time.Duration]time.Duration{
		&c.ReadTimeout:     cfg.ReadTimeout,
		&c.WriteTimeout:    cfg.WriteTimeout,
		&c.ShutdownTimeout: cfg.ShutdownTimeout,
	} {
		if src > 0 {
			*dst = src
		}
	}
	return c
}

type lifecycle int

const (
	stateIdle lifecycle = iota
	stateServing
	stateStopped
)

// Manager 查询 API 的 http.Server 生命周期：Start / Run / Shutdown
type Manager struct {
	srv    *http.Server
	cfg    Config
	logger *zap.Logger
	errCh  chan error

	mu    sync.RWMutex
	state lifecycle
	ln    net.Listener
}

func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		srv: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		logger: logger.With(zap.String("component", "http_server")),
		errCh:  make(chan error, 1),
	}
}

// Start 监听并在后台 Serve
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateStopped:
		return ErrServerClosed
	case stateServing:
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln, m.state = ln, stateServing
	m.logger.Info("query API listening", zap.String("addr", ln.Addr().String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("query API stopped serving", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}()
	return nil
}

// Run 阻塞到 ctx 结束或 Serve 失败，然后优雅关闭
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		m.logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))
	case serveErr = <-m.errCh:
	}

	// ctx 已取消，关闭只受 ShutdownTimeout 约束
	if err := m.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Shutdown 等待进行中的请求；可重复调用
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateStopped {
		return nil
	}
	m.state = stateStopped

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error("query API shutdown incomplete", zap.Error(err))
		return err
	}
	m.ln = nil
	m.logger.Info("query API stopped")
	return nil
}

// Errors 后台 Serve 的异常退出
func (m *Manager) Errors() <-chan error { return m.errCh }

// Addr 已监听时返回实际地址（端口 0 时有用）
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln != nil {
		return m.ln.Addr().String()
	}
	return m.cfg.Addr
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateServing
}
