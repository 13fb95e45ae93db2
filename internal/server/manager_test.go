package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
)

func TestConfigFrom(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, ":8080", def.Addr)
	assert.Equal(t, 2*time.Minute, def.WriteTimeout)

	cfg := ConfigFrom(config.ServerConfig{HTTPPort: 9090, ReadTimeout: 5 * time.Second, ShutdownTimeout: time.Second})
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, def.WriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, def.MaxHeaderBytes, cfg.MaxHeaderBytes)
}

func localManager(t *testing.T, h http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(h, cfg, zap.NewNop())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestManager_Lifecycle(t *testing.T) {
	m := localManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	require.False(t, m.IsRunning())

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorContains(t, m.Start(), "already started")

	resp, err := http.Get("http://" + m.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), ErrServerClosed)

	select {
	case err := <-m.Errors():
		t.Fatalf("unexpected serve error: %v", err)
	default:
	}
}

func TestManager_RunReturnsOnCancel(t *testing.T) {
	m := localManager(t, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, m.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept blocking after cancel")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_RunPortInUse(t *testing.T) {
	first := localManager(t, http.NewServeMux())
	require.NoError(t, first.Start())

	cfg := DefaultConfig()
	cfg.Addr = first.Addr()
	assert.Error(t, NewManager(http.NewServeMux(), cfg, nil).Run(context.Background()))
}

func TestManager_AddrBeforeStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":9999"
	assert.Equal(t, ":9999", NewManager(http.NewServeMux(), cfg, nil).Addr())
}
