package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

func openSQLite(t *testing.T) *LogStore {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleLog(t *testing.T) *trace.EventLog {
	t.Helper()
	log := trace.NewEventLog()
	require.NoError(t, log.Add(trace.New("b", "a", "c"), 1))
	require.NoError(t, log.Add(trace.New("a", "b", "c"), 3))
	require.NoError(t, log.Add(trace.New(), 2))
	return log
}

func TestLogStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	log := sampleLog(t)

	require.NoError(t, s.Save(ctx, "orders", log))
	got, err := s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, log.String(), got.String(), "variant order survives the round trip")

	// Saving again replaces the stored variants.
	require.NoError(t, s.Save(ctx, "orders", trace.NewEventLog(trace.New("x"))))
	got, err = s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Size())
	assert.Equal(t, 1, got.VariantCount(trace.New("x")))
}

func TestLogStore_LoadMissing(t *testing.T) {
	_, err := openSQLite(t).Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogStore_AddRemoveTrace(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	abc := trace.New("a", "b", "c")
	bac := trace.New("b", "a", "c")

	require.NoError(t, s.AddTrace(ctx, "orders", abc, 1))
	require.NoError(t, s.AddTrace(ctx, "orders", bac, 1))
	require.NoError(t, s.AddTrace(ctx, "orders", abc, 2))

	log, err := s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 3, log.VariantCount(abc))
	assert.Equal(t, "{[a, b, c]: 3, [b, a, c]: 1}", log.String())

	require.NoError(t, s.RemoveTrace(ctx, "orders", abc, 1))
	require.NoError(t, s.RemoveTrace(ctx, "orders", bac, 5))
	require.NoError(t, s.RemoveTrace(ctx, "orders", trace.New("z"), 1), "absent variants are ignored")

	log, err = s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, log.VariantCount(abc))
	assert.Zero(t, log.VariantCount(bac))

	assert.ErrorIs(t, s.AddTrace(ctx, "orders", abc, 0), ErrInvalidArgument)
	assert.ErrorIs(t, s.RemoveTrace(ctx, "orders", abc, -1), ErrInvalidArgument)
}

func TestLogStore_ListDelete(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.Save(ctx, "b-log", sampleLog(t)))
	require.NoError(t, s.Save(ctx, "a-log", trace.NewEventLog()))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LogInfo{
		{Name: "a-log", Size: 0, Variants: 0},
		{Name: "b-log", Size: 6, Variants: 3},
	}, infos)

	require.NoError(t, s.Delete(ctx, "b-log"))
	assert.ErrorIs(t, s.Delete(ctx, "b-log"), ErrNotFound)
	_, err = s.Load(ctx, "b-log")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialect(t *testing.T) {
	d, err := DialectFor("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", d.rebind("UPDATE t SET a = ? WHERE b = ?"))
	assert.Equal(t, "a = ?", SQLite.rebind("a = ?"))

	_, err = DialectFor("oracle")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func newMockPostgres(t *testing.T) (*LogStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS event_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS log_variants")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := New(context.Background(), db, Postgres)
	require.NoError(t, err)
	return s, mock
}

func TestLogStore_PostgresAddTrace(t *testing.T) {
	s, mock := newMockPostgres(t)
	ab := trace.New("a", "b")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_logs (name, created_at, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("orders", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE log_variants SET occurrences = occurrences + $1 WHERE log_name = $2 AND variant_key = $3")).
		WithArgs(3, "orders", ab.Key()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position) + 1, 0) FROM log_variants WHERE log_name = $1")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO log_variants (log_name, variant_key, labels, occurrences, position) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs("orders", ab.Key(), `["a","b"]`, 3, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.AddTrace(context.Background(), "orders", ab, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogStore_PostgresLoad(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM event_logs WHERE name = $1")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT labels, occurrences FROM log_variants WHERE log_name = $1 ORDER BY position")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"labels", "occurrences"}).
			AddRow(`["a","b","c"]`, 3).
			AddRow(`["b","a","c"]`, 1))

	log, err := s.Load(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "{[a, b, c]: 3, [b, a, c]: 1}", log.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogStore_PostgresRemoveTraceRollsBack(t *testing.T) {
	s, mock := newMockPostgres(t)
	ab := trace.New("a", "b")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT occurrences FROM log_variants WHERE log_name = $1 AND variant_key = $2")).
		WithArgs("orders", ab.Key()).
		WillReturnRows(sqlmock.NewRows([]string{"occurrences"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE log_variants SET occurrences = $1")).
		WithArgs(3, "orders", ab.Key()).
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	err := s.RemoveTrace(context.Background(), "orders", ab, 1)
	assert.ErrorIs(t, err, sqlmock.ErrCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
