package progress

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"
)

// Supported recorder drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Open builds the Recorder named by driver. The returned close function
// releases the underlying connection and is never nil.
func Open(ctx context.Context, driver, dsn string) (Recorder, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch driver {
	case "", DriverMemory:
		return NewMemoryRecorder(), noop, nil

	case DriverSQLite:
		if dsn == "" {
			dsn = "file:studyflow.db?_pragma=busy_timeout(5000)"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, noop, err
		}
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		r, err := NewSQLiteRecorder(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return r, func(context.Context) error { return db.Close() }, nil

	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		r, err := NewPostgresRecorder(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return r, func(context.Context) error { return db.Close() }, nil

	case DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
		if err != nil {
			return nil, noop, err
		}
		r := NewMongoRecorder(client, "", "")
		if err := r.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, noop, err
		}
		return r, client.Disconnect, nil

	default:
		return nil, noop, fmt.Errorf("unknown progress driver %q", driver)
	}
}
