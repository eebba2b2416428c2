package workload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/doug-martin/goqu/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/feeder"
)

func newMockBase(t *testing.T, mode config.TxMode) (base, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	logger, _ := test.NewNullLogger()
	return base{
		db:      db,
		dialect: goqu.Dialect("mysql"),
		table:   "bench",
		mode:    mode,
		log:     logger,
	}, mock
}

type staticFeeder struct {
	records []feeder.Record
	next    int
	closed  bool
}

func (f *staticFeeder) Next(ctx context.Context) (feeder.Record, error) {
	r := f.records[f.next%len(f.records)]
	f.next++
	return r, nil
}

func (f *staticFeeder) Close() error {
	f.closed = true
	return nil
}

func (f *staticFeeder) Len() int { return len(f.records) }

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{
		Host:     "db.local",
		Port:     4000,
		User:     "root",
		Password: "secret",
		Database: "test",
	})
	assert.True(t, strings.HasPrefix(dsn, "root:secret@tcp(db.local:4000)/test?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "interpolateParams=true")
}

func TestSessionStatement(t *testing.T) {
	assert.Equal(t, "", sessionStatement(config.TxModeAutoCommit))
	assert.Equal(t, "SET SESSION tidb_txn_mode = 'optimistic'", sessionStatement(config.TxModeOptimistic))
	assert.Equal(t, "SET SESSION tidb_txn_mode = 'pessimistic'", sessionStatement(config.TxModePessimistic))
}

func TestNewPicksWorkload(t *testing.T) {
	b, _ := newMockBase(t, config.TxModeAutoCommit)

	cfg := config.Defaults(config.WorkloadSelect)
	cfg.DB.Table = "bench"
	w, err := New(cfg, b.db, b.log)
	require.NoError(t, err)
	sel, ok := w.(*Select)
	require.True(t, ok, "expected *Select, got %T", w)
	assert.Equal(t, cfg.SelectCount, sel.count)

	cfg = config.Defaults(config.WorkloadInsert)
	w, err = New(cfg, b.db, b.log)
	require.NoError(t, err)
	ins, ok := w.(*Insert)
	require.True(t, ok, "expected *Insert, got %T", w)
	assert.Equal(t, cfg.BatchSize, ins.batchSize)
	assert.Nil(t, ins.rows)
}

func TestSelectSetupSeedsTwiceTheReadCount(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	s := NewSelect(b, 3)

	mock.ExpectExec("DROP TABLE IF EXISTS `bench`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE `bench`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `bench`").
		WithArgs("test_data_1", "test_data_2", "test_data_3", "test_data_4", "test_data_5", "test_data_6").
		WillReturnResult(sqlmock.NewResult(6, 6))

	require.NoError(t, s.Setup(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectSetupSurfacesCreateFailure(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	s := NewSelect(b, 3)

	mock.ExpectExec("DROP TABLE IF EXISTS `bench`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE `bench`").WillReturnError(errors.New("access denied"))

	err := s.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create table bench")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectIterationCountsRowsAndBytes(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeOptimistic)
	s := NewSelect(b, 2)
	ctx := context.Background()

	mock.ExpectExec("SET SESSION tidb_txn_mode = 'optimistic'").WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := s.NewWorker(ctx, 0)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `bench` LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow(1, "test_data_1").
			AddRow(2, "abc"))
	mock.ExpectCommit()

	out, err := w.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Items)
	assert.Equal(t, uint64(8+11+8+3), out.Bytes)

	require.NoError(t, w.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectIterationNullDataCountsIDOnly(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	s := NewSelect(b, 1)
	ctx := context.Background()

	w, err := s.NewWorker(ctx, 0)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM `bench` LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow(1, nil))

	out, err := w.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Items)
	assert.Equal(t, uint64(8), out.Bytes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectIterationRollsBackOnError(t *testing.T) {
	b, mock := newMockBase(t, config.TxModePessimistic)
	s := NewSelect(b, 5)
	ctx := context.Background()

	mock.ExpectExec("SET SESSION tidb_txn_mode = 'pessimistic'").WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := s.NewWorker(ctx, 0)
	require.NoError(t, err)

	queryErr := errors.New("lock wait timeout")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `bench`").WillReturnError(queryErr)
	mock.ExpectRollback()

	out, err := w.RunIteration(ctx)
	require.ErrorIs(t, err, queryErr)
	assert.Zero(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWorkerFailsWhenSessionModeRejected(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeOptimistic)
	s := NewSelect(b, 5)

	mock.ExpectExec("SET SESSION tidb_txn_mode").WillReturnError(errors.New("unknown system variable"))

	_, err := s.NewWorker(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set transaction mode optimistic")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertGeneratesRowsPerWorker(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	ins := NewInsert(b, 2, nil)
	ctx := context.Background()

	w, err := ins.NewWorker(ctx, 3)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `bench` \\(`data`, `value`\\) VALUES").
		WithArgs("bench_data_3_0", int64(0), "bench_data_3_1", int64(1)).
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectExec("INSERT INTO `bench`").
		WithArgs("bench_data_3_2", int64(2), "bench_data_3_3", int64(3)).
		WillReturnResult(sqlmock.NewResult(4, 2))

	out, err := w.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Items)
	assert.Equal(t, uint64(2*(len("bench_data_3_0")+4)), out.Bytes)

	_, err = w.RunIteration(ctx)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFailureDoesNotAdvanceCounter(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	ins := NewInsert(b, 1, nil)
	ctx := context.Background()

	w, err := ins.NewWorker(ctx, 0)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `bench`").WithArgs("bench_data_0_0", int64(0)).
		WillReturnError(errors.New("duplicate entry"))
	mock.ExpectExec("INSERT INTO `bench`").WithArgs("bench_data_0_0", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = w.RunIteration(ctx)
	require.Error(t, err)
	out, err := w.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertInTransactionCommits(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeOptimistic)
	ins := NewInsert(b, 1, nil)
	ctx := context.Background()

	mock.ExpectExec("SET SESSION tidb_txn_mode = 'optimistic'").WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := ins.NewWorker(ctx, 1)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `bench`").WithArgs("bench_data_1_0", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err = w.RunIteration(ctx)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUsesFeederRecords(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	rows := &staticFeeder{records: []feeder.Record{
		{"data": "alpha", "value": "7"},
		{"name": "x", "id": "9"},
	}}
	ins := NewInsert(b, 2, rows)
	ctx := context.Background()

	w, err := ins.NewWorker(ctx, 0)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `bench`").
		WithArgs("alpha", int64(7), "id=9,name=x", int64(1)).
		WillReturnResult(sqlmock.NewResult(2, 2))

	out, err := w.RunIteration(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("alpha")+4+len("id=9,name=x")+4), out.Bytes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTeardownDropsTableAndClosesFeeder(t *testing.T) {
	b, mock := newMockBase(t, config.TxModeAutoCommit)
	rows := &staticFeeder{records: []feeder.Record{{"data": "a"}}}
	ins := NewInsert(b, 1, rows)

	mock.ExpectExec("DROP TABLE IF EXISTS `bench`").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ins.Teardown(context.Background()))
	assert.True(t, rows.closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFromRecord(t *testing.T) {
	tests := []struct {
		name      string
		rec       feeder.Record
		wantData  string
		wantValue int64
	}{
		{"data and value", feeder.Record{"data": "d", "value": "12"}, "d", 12},
		{"non numeric value keeps fallback", feeder.Record{"data": "d", "value": "x"}, "d", 5},
		{"no data field joins fields", feeder.Record{"b": "2", "a": "1"}, "a=1,b=2", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, value := fromRecord(tt.rec, 5)
			assert.Equal(t, tt.wantData, data)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
