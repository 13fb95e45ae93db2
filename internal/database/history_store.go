package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DCGM/semant-demo/workflow"
)

// ExecutionRecord 执行轨迹表记录；Payload 保存完整的 JSON 轨迹
type ExecutionRecord struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Workflow   string    `gorm:"size:128;index"`
	Source     string    `gorm:"size:16"`
	Status     string    `gorm:"size:16;index"`
	Error      string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"index"`
	DurationMs int64
	Payload    string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 表名
func (ExecutionRecord) TableName() string { return "execution_histories" }

// HistoryStore 基于 GORM 的 workflow.HistoryStore
type HistoryStore struct {
	pool       *PoolManager
	maxRetries int
	logger     *zap.Logger
}

var _ workflow.HistoryStore = (*HistoryStore)(nil)

// HistoryStoreOption 配置 HistoryStore
type HistoryStoreOption func(*historyStoreOptions)

type historyStoreOptions struct {
	managedSchema bool
}

// WithManagedSchema 表结构已由 Migrator 维护，跳过 AutoMigrate
func WithManagedSchema() HistoryStoreOption {
	return func(o *historyStoreOptions) { o.managedSchema = true }
}

// NewHistoryStore 默认用 AutoMigrate 建表（sqlite），postgres/mysql 由版本化迁移建表
func NewHistoryStore(ctx context.Context, pool *PoolManager, logger *zap.Logger, opts ...HistoryStoreOption) (*HistoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o historyStoreOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.managedSchema {
		if err := pool.DB().WithContext(ctx).AutoMigrate(&ExecutionRecord{}); err != nil {
			return nil, fmt.Errorf("migrate execution histories: %w", err)
		}
	} else if !pool.DB().WithContext(ctx).Migrator().HasTable(&ExecutionRecord{}) {
		return nil, fmt.Errorf("table %s missing, run migrations first", ExecutionRecord{}.TableName())
	}
	return &HistoryStore{
		pool:       pool,
		maxRetries: 3,
		logger:     logger.With(zap.String("component", "history_db")),
	}, nil
}

func toRecord(h *workflow.ExecutionHistory) (*ExecutionRecord, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal execution history: %w", err)
	}
	return &ExecutionRecord{
		ID:         h.ExecutionID,
		Workflow:   h.Workflow,
		Source:     string(h.Source),
		Status:     string(h.Status),
		Error:      h.Error,
		StartedAt:  h.StartTime,
		DurationMs: h.Duration.Milliseconds(),
		Payload:    string(payload),
	}, nil
}

// Save 插入或覆盖同 ID 的轨迹
func (s *HistoryStore) Save(ctx context.Context, h *workflow.ExecutionHistory) error {
	if h == nil {
		return errors.New("history is nil")
	}
	rec, err := toRecord(h)
	if err != nil {
		return err
	}

	err = s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"workflow", "source", "status", "error", "started_at", "duration_ms", "payload", "updated_at"}),
		}).Create(rec).Error
	})
	if err != nil {
		s.logger.Error("history save failed", zap.String("execution_id", h.ExecutionID), zap.Error(err))
		return fmt.Errorf("save execution history: %w", err)
	}
	return nil
}

// Get 按执行 ID 读取轨迹
func (s *HistoryStore) Get(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error) {
	var rec ExecutionRecord
	err := s.pool.DB().WithContext(ctx).First(&rec, "id = ?", executionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution history: %w", err)
	}

	var h workflow.ExecutionHistory
	if err := json.Unmarshal([]byte(rec.Payload), &h); err != nil {
		return nil, fmt.Errorf("unmarshal execution history %s: %w", executionID, err)
	}
	return &h, nil
}

// Count 已保存的轨迹数量，可按状态过滤
func (s *HistoryStore) Count(ctx context.Context, status workflow.ExecutionStatus) (int64, error) {
	q := s.pool.DB().WithContext(ctx).Model(&ExecutionRecord{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count execution histories: %w", err)
	}
	return n, nil
}

// Close 关闭底层连接池
func (s *HistoryStore) Close() error {
	return s.pool.Close()
}
