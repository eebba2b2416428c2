package workload

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/crankdb/internal/feeder"
	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/runner"
	"github.com/torosent/crankdb/internal/tracing"
)

const (
	createInsertTable = "CREATE TABLE %s (id BIGINT PRIMARY KEY AUTO_INCREMENT, data VARCHAR(255), value INT, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)"
	// valueBytes is the wire size counted for the INT value column.
	valueBytes = 4
	valueRange = 1000
)

// Insert writes BatchSize rows per iteration in a single multi-row INSERT.
// Rows come from a feeder when one is configured, otherwise they are
// generated from the worker id and a per-worker counter.
type Insert struct {
	base
	batchSize int
	rows      feeder.Feeder
}

// NewInsert creates the INSERT workload. rows may be nil.
func NewInsert(b base, batchSize int, rows feeder.Feeder) *Insert {
	return &Insert{base: b, batchSize: batchSize, rows: rows}
}

// Setup recreates the table.
func (ins *Insert) Setup(ctx context.Context) error {
	return ins.recreateTable(ctx, createInsertTable)
}

// NewWorker checks out a connection for worker id.
func (ins *Insert) NewWorker(ctx context.Context, id int) (runner.Worker, error) {
	conn, err := ins.openConn(ctx)
	if err != nil {
		return nil, err
	}
	return &insertWorker{owner: ins, id: id, conn: conn}, nil
}

// Teardown drops the table and releases the feeder.
func (ins *Insert) Teardown(ctx context.Context) error {
	err := ins.dropTable(ctx)
	if ins.rows != nil {
		if cerr := ins.rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type insertWorker struct {
	owner   *Insert
	id      int
	conn    *sql.Conn
	counter uint64
}

func (w *insertWorker) RunIteration(ctx context.Context) (metrics.Outcome, error) {
	tracing.AnnotateStatement(ctx, dbSystem, "INSERT", w.owner.table)

	rows, bytes, err := w.batch(ctx)
	if err != nil {
		return metrics.Outcome{}, err
	}
	query, args, err := w.owner.dialect.Insert(w.owner.table).Cols("data", "value").Vals(rows...).Prepared(true).ToSQL()
	if err != nil {
		return metrics.Outcome{}, fmt.Errorf("build insert statement: %w", err)
	}
	err = inTx(ctx, w.conn, w.owner.mode, func(q queryer) error {
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return metrics.Outcome{}, err
	}
	// Only committed batches advance the counter.
	w.counter += uint64(len(rows))
	return metrics.Outcome{Bytes: bytes, Items: uint64(len(rows))}, nil
}

// batch builds the next BatchSize rows and the payload bytes they carry.
func (w *insertWorker) batch(ctx context.Context) ([][]interface{}, uint64, error) {
	rows := make([][]interface{}, 0, w.owner.batchSize)
	var bytes uint64
	for i := 0; i < w.owner.batchSize; i++ {
		n := w.counter + uint64(i)
		data := fmt.Sprintf("bench_data_%d_%d", w.id, n)
		value := int64(n % valueRange)
		if w.owner.rows != nil {
			rec, err := w.owner.rows.Next(ctx)
			if err != nil {
				return nil, 0, err
			}
			data, value = fromRecord(rec, value)
		}
		rows = append(rows, []interface{}{data, value})
		bytes += uint64(len(data)) + valueBytes
	}
	return rows, bytes, nil
}

func (w *insertWorker) Close() error {
	return w.conn.Close()
}

// fromRecord maps a feeder record onto the data and value columns. A record
// without a "data" field contributes all of its fields as key=value pairs
// in key order; a missing or non-numeric "value" keeps the generated one.
func fromRecord(rec feeder.Record, fallback int64) (string, int64) {
	value := fallback
	if raw, ok := rec["value"]; ok {
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32); err == nil {
			value = v
		}
	}
	if data, ok := rec["data"]; ok {
		return data, value
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + rec[k]
	}
	return strings.Join(parts, ","), value
}
