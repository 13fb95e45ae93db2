package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// ErrMigrationsUnsupported sqlite 没有版本化迁移，表结构由 AutoMigrate 维护
var ErrMigrationsUnsupported = errors.New("versioned migrations not available for driver")

// SupportsMigrations 报告驱动是否使用 migrations/<driver> 下的 SQL 文件
func SupportsMigrations(driver string) bool {
	return driver == "postgres" || driver == "mysql"
}

func migrationSource(driver string) (source.Driver, error) {
	if !SupportsMigrations(driver) {
		return nil, fmt.Errorf("%w: %q", ErrMigrationsUnsupported, driver)
	}
	return iofs.New(migrationFiles, "migrations/"+driver)
}

// Migrator 管理 execution_histories 的表结构版本
type Migrator struct {
	m      *migrate.Migrate
	name   string
	logger *zap.Logger
}

// NewMigrator 为迁移单独打开一个连接，Close 时一并关闭
func NewMigrator(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Migrator, error) {
	src, err := migrationSource(cfg.Driver)
	if err != nil {
		return nil, err
	}

	// lib/pq 与 go-sql-driver/mysql 分别以 postgres、mysql 注册
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err == nil {
		err = db.PingContext(ctx)
	}
	var drv migratedb.Driver
	if err == nil {
		switch cfg.Driver {
		case "postgres":
			drv, err = migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
		case "mysql":
			drv, err = migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: migrationsTable})
		}
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		_ = src.Close()
		return nil, fmt.Errorf("connect %s for migrations: %w", cfg.Driver, err)
	}
	return newMigrator(src, cfg.Driver, drv, logger)
}

func newMigrator(src source.Driver, name string, drv migratedb.Driver, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	mg := &Migrator{m: m, name: name, logger: logger.With(zap.String("component", "migrator"))}
	m.Log = migrateLog{mg.logger}
	return mg, nil
}

// Up 应用所有未执行的迁移，返回当前版本；ctx 取消时在当前迁移结束后停止
func (mg *Migrator) Up(ctx context.Context) (uint, error) {
	stop := context.AfterFunc(ctx, func() {
		select {
		case mg.m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate %s up: %w", mg.name, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	v, dirty, err := mg.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	mg.logger.Info("schema up to date", zap.String("driver", mg.name), zap.Uint("version", v))
	return v, nil
}

// Version 尚未迁移时返回 0
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateUp 打开、迁移、关闭
func MigrateUp(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (uint, error) {
	mg, err := NewMigrator(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	v, err := mg.Up(ctx)
	return v, errors.Join(err, mg.Close())
}

// migrateLog 把 golang-migrate 的日志转到 zap
type migrateLog struct{ logger *zap.Logger }

func (l migrateLog) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLog) Verbose() bool { return false }
