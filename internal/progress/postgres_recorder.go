package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

// PostgresRecorder is a Recorder backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresRecorder struct {
	db  *sql.DB
	now func() time.Time
}

var _ Recorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder initializes the required schema in the given
// database and returns a new PostgresRecorder.
func NewPostgresRecorder(ctx context.Context, db *sql.DB) (*PostgresRecorder, error) {
	r := &PostgresRecorder{db: db, now: time.Now}
	if err := r.initSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRecorder) initSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_results (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			user_id     TEXT NOT NULL,
			topic       TEXT NOT NULL,
			correct     INTEGER NOT NULL,
			total       INTEGER NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			weak_topics JSONB NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS quiz_results_user_idx ON quiz_results (user_id, recorded_at)
	`)
	return err
}

func (r *PostgresRecorder) Record(ctx context.Context, user api.UserID, result api.QuizResult) error {
	e := NewEntry(user, result, r.now())
	weak, err := json.Marshal(nonNil(e.WeakTopics))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quiz_results (id, user_id, topic, correct, total, score, weak_topics, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		e.ID,
		string(e.UserID),
		e.Topic,
		e.Correct,
		e.Total,
		e.Score,
		string(weak),
		e.RecordedAt,
	)
	return err
}

func (r *PostgresRecorder) Stats(ctx context.Context, user api.UserID) (api.ProgressStats, error) {
	stats := api.ProgressStats{WeakTopics: []string{}}

	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score)
		FROM quiz_results
		WHERE user_id = $1
	`, string(user)).Scan(&stats.Attempts, &avg)
	if err != nil {
		return stats, err
	}
	if stats.Attempts == 0 {
		return stats, nil
	}
	stats.AvgScore = roundScore(avg.Float64)

	rows, err := r.db.QueryContext(ctx, `
		SELECT weak_topics::text
		FROM quiz_results
		WHERE user_id = $1
		ORDER BY recorded_at DESC, seq DESC
		LIMIT $2
	`, string(user), weakTopicWindow)
	if err != nil {
		return stats, err
	}
	weak, err := scanWeakTopics(rows)
	if err != nil {
		return stats, err
	}
	stats.WeakTopics = weak
	return stats, nil
}
