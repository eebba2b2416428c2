package workload

import (
	"context"
	"database/sql"

	"github.com/torosent/crankdb/internal/config"
)

// sessionStatement returns the statement that switches a TiDB session to
// mode, or "" for auto-commit.
func sessionStatement(mode config.TxMode) string {
	switch mode {
	case config.TxModeOptimistic:
		return "SET SESSION tidb_txn_mode = 'optimistic'"
	case config.TxModePessimistic:
		return "SET SESSION tidb_txn_mode = 'pessimistic'"
	default:
		return ""
	}
}

// inTx runs fn bare in auto-commit mode, otherwise inside BEGIN/COMMIT on
// conn. Errors are returned unwrapped so the driver's error type survives
// into the error breakdown.
func inTx(ctx context.Context, conn *sql.Conn, mode config.TxMode, fn func(q queryer) error) error {
	if mode == config.TxModeAutoCommit {
		return fn(conn)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
