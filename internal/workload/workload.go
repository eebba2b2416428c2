// Package workload implements the database workloads crankdb can drive:
// SELECT reads a fixed number of rows per iteration and INSERT writes a
// batch of rows per iteration. Both run against MySQL-protocol servers
// (TiDB, MySQL) and create and drop their own table.
package workload

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/feeder"
	"github.com/torosent/crankdb/internal/runner"
)

const dbSystem = "mysql"

// queryer is satisfied by both *sql.Conn and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Open creates a connection pool sized for one dedicated connection per
// worker plus one for setup and teardown.
func Open(cfg config.DBConfig, workers int) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(workers + 1)
	db.SetMaxIdleConns(workers + 1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// DSN renders the go-sql-driver/mysql data source name for cfg.
func DSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.DBName = cfg.Database
	mc.ParseTime = true
	// One round trip per statement; server-side prepares would double it.
	mc.InterpolateParams = true
	return mc.FormatDSN()
}

// New builds the workload named by cfg.Workload on top of db.
func New(cfg *config.Config, db *sql.DB, logger logrus.FieldLogger) (runner.Workload, error) {
	b := base{
		db:      db,
		dialect: goqu.Dialect("mysql"),
		table:   cfg.DB.Table,
		mode:    cfg.DB.TxMode,
		log:     logger,
	}
	switch cfg.Workload {
	case config.WorkloadSelect:
		return NewSelect(b, cfg.SelectCount), nil
	case config.WorkloadInsert:
		var rows feeder.Feeder
		if cfg.Feeder.Path != "" {
			f, err := feeder.New(cfg.Feeder.Path, cfg.Feeder.Type)
			if err != nil {
				return nil, err
			}
			rows = f
		}
		return NewInsert(b, cfg.BatchSize, rows), nil
	default:
		return nil, fmt.Errorf("unknown workload %q", cfg.Workload)
	}
}

// base holds what every workload shares: the pool, the SQL dialect, the
// table under test and the transaction mode.
type base struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	table   string
	mode    config.TxMode
	log     logrus.FieldLogger
}

func (b base) quotedTable() string {
	return "`" + b.table + "`"
}

func (b base) recreateTable(ctx context.Context, ddl string) error {
	if err := b.dropTable(ctx); err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(ddl, b.quotedTable())); err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

func (b base) dropTable(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+b.quotedTable()); err != nil {
		return fmt.Errorf("drop table %s: %w", b.table, err)
	}
	return nil
}

// openConn checks out a dedicated connection and applies the session's
// transaction mode once.
func (b base) openConn(ctx context.Context) (*sql.Conn, error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if stmt := sessionStatement(b.mode); stmt != "" {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set transaction mode %s: %w", b.mode, err)
		}
	}
	return conn, nil
}
