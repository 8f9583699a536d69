package progress

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:progress_test?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteRecorder(t *testing.T) {
	r, err := NewSQLiteRecorder(context.Background(), openTestSQLite(t))
	require.NoError(t, err)

	testRecorderContract(t, r, "sqlite-user")
}

func TestSQLiteRecorder_SchemaIsIdempotent(t *testing.T) {
	db := openTestSQLite(t)
	_, err := NewSQLiteRecorder(context.Background(), db)
	require.NoError(t, err)
	_, err = NewSQLiteRecorder(context.Background(), db)
	require.NoError(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	r, closeFn, err := Open(ctx, DriverSQLite, "file:open_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn(ctx)) }()

	require.IsType(t, &SQLiteRecorder{}, r)
	testRecorderContract(t, r, "open-user")
}
