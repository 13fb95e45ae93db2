// Package cache provides the Redis-backed execution history store.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/workflow"
)

// ErrClosed Close 之后的任何操作
var ErrClosed = errors.New("history cache is closed")

// Config Redis 连接与轨迹保存参数。TTL 为 0 时轨迹不过期，
// HealthCheckInterval 为 0 时不做后台探活。
type Config struct {
	Addr         string `yaml:"addr" json:"addr"`
	Password     string `yaml:"password" json:"password"`
	DB           int    `yaml:"db" json:"db"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	PoolSize     int    `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" json:"min_idle_conns"`

	KeyPrefix           string        `yaml:"key_prefix" json:"key_prefix"`
	TTL                 time.Duration `yaml:"ttl" json:"ttl"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		KeyPrefix:           "semant:execution:",
		TTL:                 24 * time.Hour,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Manager 把 workflow.ExecutionHistory 以 JSON 存入 Redis，键为 KeyPrefix+执行 ID
type Manager struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
}

var _ workflow.HistoryStore = (*Manager)(nil)

// NewManager 连接失败时返回错误，不留下半开的客户端
func NewManager(ctx context.Context, cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	m := &Manager{
		redis:  client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "history_cache")),
		stop:   make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		go m.watch(cfg.HealthCheckInterval)
	}

	m.logger.Info("history cache connected", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.TTL))
	return m, nil
}

func (m *Manager) key(executionID string) string { return m.prefix + executionID }

// open 持有读锁直到 release；已关闭时返回 ErrClosed
func (m *Manager) open() (release func(), err error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	return m.mu.RUnlock, nil
}

// Save 覆盖同 ID 的轨迹并重置 TTL
func (m *Manager) Save(ctx context.Context, h *workflow.ExecutionHistory) error {
	if h == nil {
		return errors.New("history is nil")
	}
	release, err := m.open()
	if err != nil {
		return err
	}
	defer release()

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal execution history: %w", err)
	}
	if err := m.redis.Set(ctx, m.key(h.ExecutionID), data, m.ttl).Err(); err != nil {
		m.logger.Error("history save failed", zap.String("execution_id", h.ExecutionID), zap.Error(err))
		return fmt.Errorf("save execution history: %w", err)
	}
	return nil
}

// Get 不存在或已过期时返回 workflow.ErrHistoryNotFound
func (m *Manager) Get(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error) {
	release, err := m.open()
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := m.redis.Get(ctx, m.key(executionID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, workflow.ErrHistoryNotFound
	case err != nil:
		return nil, fmt.Errorf("get execution history: %w", err)
	}

	h := new(workflow.ExecutionHistory)
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("decode execution history %s: %w", executionID, err)
	}
	return h, nil
}

func (m *Manager) Delete(ctx context.Context, executionIDs ...string) error {
	if len(executionIDs) == 0 {
		return nil
	}
	release, err := m.open()
	if err != nil {
		return err
	}
	defer release()

	keys := make([]string, 0, len(executionIDs))
	for _, id := range executionIDs {
		keys = append(keys, m.key(id))
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete execution history: %w", err)
	}
	return nil
}

// Ping 供 /health/ready 使用
func (m *Manager) Ping(ctx context.Context) error {
	release, err := m.open()
	if err != nil {
		return err
	}
	defer release()
	return m.redis.Ping(ctx).Err()
}

// Close 可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.stop)
	return m.redis.Close()
}

func (m *Manager) watch(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Warn("history cache ping failed", zap.Error(err))
		}
		cancel()
	}
}
