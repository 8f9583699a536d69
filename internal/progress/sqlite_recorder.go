package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

// SQLiteRecorder is a Recorder backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRecorder struct {
	db  *sql.DB
	now func() time.Time
}

var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder initializes the required schema in the given database
// and returns a new SQLiteRecorder.
func NewSQLiteRecorder(ctx context.Context, db *sql.DB) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.initSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRecorder) initSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_results (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			correct INTEGER NOT NULL,
			total INTEGER NOT NULL,
			score REAL NOT NULL,
			weak_topics TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS quiz_results_user_idx ON quiz_results (user_id, recorded_at);`,
	)
	return err
}

func (r *SQLiteRecorder) Record(ctx context.Context, user api.UserID, result api.QuizResult) error {
	e := NewEntry(user, result, r.now())
	weak, err := json.Marshal(nonNil(e.WeakTopics))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quiz_results (id, user_id, topic, correct, total, score, weak_topics, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.UserID),
		e.Topic,
		e.Correct,
		e.Total,
		e.Score,
		string(weak),
		e.RecordedAt.UnixNano(),
	)
	return err
}

func (r *SQLiteRecorder) Stats(ctx context.Context, user api.UserID) (api.ProgressStats, error) {
	stats := api.ProgressStats{WeakTopics: []string{}}

	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score)
		FROM quiz_results
		WHERE user_id = ?`,
		string(user),
	).Scan(&stats.Attempts, &avg)
	if err != nil {
		return stats, err
	}
	if stats.Attempts == 0 {
		return stats, nil
	}
	stats.AvgScore = roundScore(avg.Float64)

	rows, err := r.db.QueryContext(ctx, `
		SELECT weak_topics
		FROM quiz_results
		WHERE user_id = ?
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`,
		string(user),
		weakTopicWindow,
	)
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

// scanWeakTopics reads one JSON list per row and merges them. It closes rows.
func scanWeakTopics(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var lists [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			continue
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mergeWeakTopics(lists...), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
