package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the ent SQL driver with the dialect it speaks.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	pool    *pgxpool.Pool
	sqlDB   *sql.DB
	logger  *slog.Logger
}

// Open connects to postgres (pgx pool wrapped for ent) or sqlite (modernc).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, logger)
	case "sqlite", "":
		return OpenSQLite(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "takeoff-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{
		Driver:  entsql.OpenDB(dialect.Postgres, db),
		Dialect: dialect.Postgres,
		pool:    pool,
		sqlDB:   db,
		logger:  logger,
	}, nil
}

// OpenSQLite opens a modernc sqlite database. A single connection is kept so
// writers never contend on the file lock.
func OpenSQLite(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", "sqlite", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &DB{
		Driver:  entsql.OpenDB(dialect.SQLite, db),
		Dialect: dialect.SQLite,
		sqlDB:   db,
		logger:  logger,
	}, nil
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	if d == nil {
		return
	}
	d.logger.Info("closing database connections")
	if d.Driver != nil {
		if err := d.Driver.Close(); err != nil {
			d.logger.Error("failed to close ent driver", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	d.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.sqlDB.PingContext(ctx)
}

func (d *DB) conn() conn {
	return conn{q: d.Driver, dialect: d.Dialect}
}

// conn pairs an executor (driver or transaction) with its SQL dialect.
type conn struct {
	q       dialect.ExecQuerier
	dialect string
}

func (c conn) sql() *entsql.DialectBuilder {
	return entsql.Dialect(c.dialect)
}

func (c conn) exec(ctx context.Context, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	var res sql.Result
	if err := c.q.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c conn) query(ctx context.Context, b entsql.Querier, scan func(rows *entsql.Rows) error) error {
	query, args := b.Query()
	rows := &entsql.Rows{}
	if err := c.q.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
