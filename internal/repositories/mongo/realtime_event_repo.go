package mongo

import (
	"context"
	"time"

	"github.com/yoockh/interviewx/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RealtimeEventTTL bounds how long live feedback is kept.
const RealtimeEventTTL = 7 * 24 * time.Hour

type RealtimeEventRepository interface {
	Insert(ctx context.Context, e *models.RealtimeEvent) error
	ListByEvaluation(ctx context.Context, evaluationID string, limit int64) ([]models.RealtimeEvent, error)
	DeleteByEvaluation(ctx context.Context, evaluationID string) error
}

type realtimeEventRepo struct {
	col *mongo.Collection
}

func NewRealtimeEventRepo(db *mongo.Database) RealtimeEventRepository {
	return &realtimeEventRepo{col: db.Collection("realtime_events")}
}

func (r *realtimeEventRepo) Insert(ctx context.Context, e *models.RealtimeEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.Timestamp.Add(RealtimeEventTTL)
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *realtimeEventRepo) ListByEvaluation(ctx context.Context, evaluationID string, limit int64) ([]models.RealtimeEvent, error) {
	if limit <= 0 {
		limit = 500
	}

	cur, err := r.col.Find(ctx,
		bson.M{"evaluation_id": evaluationID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RealtimeEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *realtimeEventRepo) DeleteByEvaluation(ctx context.Context, evaluationID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"evaluation_id": evaluationID})
	return err
}
