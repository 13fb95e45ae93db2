package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DCGM/semant-demo/config"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

// newTestPool 返回基于 sqlmock 的连接池；监控 Ping 以便断言健康检查
func newTestPool(t *testing.T, cfg PoolConfig) (*PoolManager, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	pm, err := NewPoolManager(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	return pm, mock
}

func smallPool() PoolConfig {
	return PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2}
}

func TestNewPoolManager(t *testing.T) {
	cfg := PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
	pm, _ := newTestPool(t, cfg)

	assert.Equal(t, cfg, pm.config)
	assert.NotNil(t, pm.DB())
	assert.Equal(t, 10, pm.Stats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, smallPool(), nil)
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	pm, mock := newTestPool(t, smallPool())

	mock.ExpectPing()
	assert.NoError(t, pm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, pm.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransaction(t *testing.T) {
	tests := []struct {
		name    string
		fn      TransactionFunc
		expect  func(sqlmock.Sqlmock)
		wantErr bool
	}{
		{
			name:   "commit",
			fn:     func(*gorm.DB) error { return nil },
			expect: func(m sqlmock.Sqlmock) { m.ExpectBegin(); m.ExpectCommit() },
		},
		{
			name:    "rollback on error",
			fn:      func(*gorm.DB) error { return assert.AnError },
			expect:  func(m sqlmock.Sqlmock) { m.ExpectBegin(); m.ExpectRollback() },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, mock := newTestPool(t, smallPool())
			tt.expect(mock)

			err := pm.WithTransaction(context.Background(), tt.fn)
			if tt.wantErr {
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPoolManager_Close(t *testing.T) {
	pm, mock := newTestPool(t, PoolConfig{
		MaxOpenConns:        4,
		MaxIdleConns:        2,
		HealthCheckInterval: 10 * time.Millisecond,
	})

	// 健康检查循环运行几轮；未预期的 Ping 只会记录告警
	time.Sleep(35 * time.Millisecond)

	mock.ExpectClose()
	assert.NoError(t, pm.Close())
	assert.NoError(t, pm.Close())
	assert.ErrorIs(t, pm.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, pm.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
}

func TestPoolManager_WithTransactionRetry(t *testing.T) {
	manager, mock := newTestPool(t, smallPool())

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		calls++
		if calls == 1 {
			return errors.New("ERROR: deadlock detected")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry_NotRetryable(t *testing.T) {
	manager, mock := newTestPool(t, smallPool())

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("deadlock detected"), true},
		{errors.New("pq: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("database is locked"), true},
		{errors.New("driver: bad connection"), true},
		{errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

func TestPoolConfigFrom(t *testing.T) {
	pc := PoolConfigFrom(config.DatabaseConfig{MaxOpenConns: 4, MaxIdleConns: 8, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 4, pc.MaxOpenConns)
	assert.Equal(t, 4, pc.MaxIdleConns)
	assert.Equal(t, time.Minute, pc.ConnMaxLifetime)
	assert.NoError(t, pc.Validate())

	assert.Equal(t, DefaultPoolConfig().MaxOpenConns, PoolConfigFrom(config.DatabaseConfig{}).MaxOpenConns)
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  PoolConfig
		wantErr string
	}{
		{name: "defaults", config: DefaultPoolConfig()},
		{name: "no open conns", config: PoolConfig{MaxIdleConns: 5}, wantErr: "max_open_conns"},
		{name: "no idle conns", config: PoolConfig{MaxOpenConns: 10}, wantErr: "max_idle_conns"},
		{name: "idle exceeds open", config: PoolConfig{MaxOpenConns: 5, MaxIdleConns: 10}, wantErr: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
