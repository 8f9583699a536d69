package progress

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/studyflow/pkg/api"
)

// MongoRecorder is a Recorder backed by a MongoDB collection.
type MongoRecorder struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ Recorder = (*MongoRecorder)(nil)

// NewMongoRecorder creates a Mongo-backed recorder.
// dbName defaults to "studyflow" if empty, collName defaults to "quiz_results".
func NewMongoRecorder(client *mongo.Client, dbName, collName string) *MongoRecorder {
	if dbName == "" {
		dbName = "studyflow"
	}
	if collName == "" {
		collName = "quiz_results"
	}
	return &MongoRecorder{
		coll: client.Database(dbName).Collection(collName),
		now:  time.Now,
	}
}

type mongoResultDoc struct {
	ID         string   `bson:"_id"`
	UserID     string   `bson:"user_id"`
	Topic      string   `bson:"topic"`
	Correct    int      `bson:"correct"`
	Total      int      `bson:"total"`
	Score      float64  `bson:"score"`
	WeakTopics []string `bson:"weak_topics"`
	RecordedAt int64    `bson:"recorded_at"`
}

// EnsureIndexes creates the index used by Stats.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "recorded_at", Value: -1}},
	})
	return err
}

func (r *MongoRecorder) Record(ctx context.Context, user api.UserID, result api.QuizResult) error {
	e := NewEntry(user, result, r.now())
	_, err := r.coll.InsertOne(ctx, mongoResultDoc{
		ID:         e.ID,
		UserID:     string(e.UserID),
		Topic:      e.Topic,
		Correct:    e.Correct,
		Total:      e.Total,
		Score:      e.Score,
		WeakTopics: nonNil(e.WeakTopics),
		RecordedAt: e.RecordedAt.UnixNano(),
	})
	return err
}

func (r *MongoRecorder) Stats(ctx context.Context, user api.UserID) (api.ProgressStats, error) {
	stats := api.ProgressStats{WeakTopics: []string{}}

	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": string(user)}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"attempts": bson.M{"$sum": 1},
			"avg":      bson.M{"$avg": "$score"},
		}}},
	})
	if err != nil {
		return stats, err
	}
	var groups []struct {
		Attempts int     `bson:"attempts"`
		Avg      float64 `bson:"avg"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return stats, err
	}
	if len(groups) == 0 || groups[0].Attempts == 0 {
		return stats, nil
	}
	stats.Attempts = groups[0].Attempts
	stats.AvgScore = roundScore(groups[0].Avg)

	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}}).
		SetLimit(weakTopicWindow).
		SetProjection(bson.M{"weak_topics": 1})
	found, err := r.coll.Find(ctx, bson.M{"user_id": string(user)}, opts)
	if err != nil {
		return stats, err
	}
	defer found.Close(ctx)

	var lists [][]string
	for found.Next(ctx) {
		var doc mongoResultDoc
		if err := found.Decode(&doc); err != nil {
			return stats, err
		}
		lists = append(lists, doc.WeakTopics)
	}
	if err := found.Err(); err != nil {
		return stats, err
	}
	stats.WeakTopics = mergeWeakTopics(lists...)
	return stats, nil
}
