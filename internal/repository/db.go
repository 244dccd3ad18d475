package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is the store handle shared by every repository. Postgres goes through a
// pgx pool; "sqlite:" DSNs open modernc's pure-Go driver.
type DB struct {
	drv     *entsql.Driver
	sqlDB   *sql.DB
	pool    *pgxpool.Pool
	dialect string
	logger  *slog.Logger
}

// Open connects and wraps the connection for ent's SQL builders.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path, ok := sqlitePath(cfg.DSN); ok {
		return openSQLite(path, logger)
	}

	logger.Info("repository.open.postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("repository.open.parse_failed", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "pantry-receipts"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("repository.open.failed", "error", err)
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Wrap pool as *sql.DB for ent
	sqlDB := stdlib.OpenDBFromPool(pool)
	logger.Info("repository.open.ok", "dialect", dialect.Postgres)
	return &DB{
		drv:     entsql.OpenDB(dialect.Postgres, sqlDB),
		sqlDB:   sqlDB,
		pool:    pool,
		dialect: dialect.Postgres,
		logger:  logger,
	}, nil
}

func openSQLite(path string, logger *slog.Logger) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writes
	sqlDB.SetMaxOpenConns(1)
	logger.Info("repository.open.ok", "dialect", dialect.SQLite, "path", path)
	return &DB{
		drv:     entsql.OpenDB(dialect.SQLite, sqlDB),
		sqlDB:   sqlDB,
		dialect: dialect.SQLite,
		logger:  logger,
	}, nil
}

// sqlitePath recognizes "sqlite:<path>" and "sqlite://<path>".
func sqlitePath(dsn string) (string, bool) {
	for _, p := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(dsn, p) {
			return strings.TrimPrefix(dsn, p), true
		}
	}
	return "", false
}

// Dialect reports the SQL dialect in use.
func (db *DB) Dialect() string { return db.dialect }

// Close closes the database connections gracefully
func (db *DB) Close() {
	db.logger.Info("repository.close")
	if err := db.drv.Close(); err != nil {
		db.logger.Error("repository.close.failed", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck pings the store to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.sqlDB.PingContext(ctx)
}

func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.dialect)
}

func (db *DB) exec(ctx context.Context, q string, args []any) error {
	var res sql.Result
	return db.drv.Exec(ctx, q, args, &res)
}

func (db *DB) query(ctx context.Context, q string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if err := db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *DB) count(ctx context.Context, sel *entsql.Selector) (int, error) {
	q, args := sel.Query()
	rows, err := db.query(ctx, q, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
