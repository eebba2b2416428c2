package workload

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/runner"
	"github.com/torosent/crankdb/internal/tracing"
)

const (
	createSelectTable = "CREATE TABLE %s (id BIGINT PRIMARY KEY AUTO_INCREMENT, data VARCHAR(255), created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)"
	seedBatchSize     = 1000
	// idBytes is the wire size counted for the BIGINT id column.
	idBytes = 8
)

// Select seeds twice as many rows as each iteration reads, then has every
// iteration read SelectCount rows through a dedicated connection.
type Select struct {
	base
	count int
}

// NewSelect creates the SELECT workload reading count rows per iteration.
func NewSelect(b base, count int) *Select {
	return &Select{base: b, count: count}
}

// Setup recreates the table and seeds it with 2*count rows.
func (s *Select) Setup(ctx context.Context) error {
	if err := s.recreateTable(ctx, createSelectTable); err != nil {
		return err
	}
	total := 2 * s.count
	for start := 1; start <= total; start += seedBatchSize {
		end := start + seedBatchSize - 1
		if end > total {
			end = total
		}
		rows := make([][]interface{}, 0, end-start+1)
		for n := start; n <= end; n++ {
			rows = append(rows, goqu.Vals{fmt.Sprintf("test_data_%d", n)})
		}
		query, args, err := s.dialect.Insert(s.table).Cols("data").Vals(rows...).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build seed statement: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("seed table %s: %w", s.table, err)
		}
	}
	s.log.WithField("rows", total).Debug("seeded select table")
	return nil
}

// NewWorker checks out a connection for worker id and prepares its query.
func (s *Select) NewWorker(ctx context.Context, id int) (runner.Worker, error) {
	query, args, err := s.dialect.From(s.table).Select("id", "data").Limit(uint(s.count)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select statement: %w", err)
	}
	conn, err := s.openConn(ctx)
	if err != nil {
		return nil, err
	}
	return &selectWorker{owner: s, conn: conn, query: query, args: args}, nil
}

// Teardown drops the table.
func (s *Select) Teardown(ctx context.Context) error {
	return s.dropTable(ctx)
}

type selectWorker struct {
	owner *Select
	conn  *sql.Conn
	query string
	args  []interface{}
}

func (w *selectWorker) RunIteration(ctx context.Context) (metrics.Outcome, error) {
	tracing.AnnotateStatement(ctx, dbSystem, "SELECT", w.owner.table)

	var out metrics.Outcome
	err := inTx(ctx, w.conn, w.owner.mode, func(q queryer) error {
		rows, err := q.QueryContext(ctx, w.query, w.args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id   int64
				data sql.NullString
			)
			if err := rows.Scan(&id, &data); err != nil {
				return err
			}
			out.Bytes += idBytes + uint64(len(data.String))
			out.Items++
		}
		return rows.Err()
	})
	if err != nil {
		return metrics.Outcome{}, err
	}
	return out, nil
}

func (w *selectWorker) Close() error {
	return w.conn.Close()
}
