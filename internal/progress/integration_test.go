package progress

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/studyflow/internal/testutil"
	"github.com/petrijr/studyflow/pkg/api"
)

func TestPostgresRecorder(t *testing.T) {
	dsn := testutil.GetPostgresDSN(t)
	ctx := context.Background()

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))

	r, err := NewPostgresRecorder(ctx, db)
	require.NoError(t, err)

	testRecorderContract(t, r, api.UserID("pg-"+uuid.NewString()))
}

func TestMongoRecorder(t *testing.T) {
	uri := testutil.GetMongoURI(t)
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	r := NewMongoRecorder(client, "studyflow_test", "quiz_results_"+uuid.NewString()[:8])
	require.NoError(t, r.EnsureIndexes(ctx))

	testRecorderContract(t, r, "mongo-user")
}
