package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InterviewRepository interface {
	Create(ctx context.Context, i *models.Interview) error
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.Interview, error)

	// MarkStarted moves a pending interview to in-progress. Returns false when
	// the interview was not pending.
	MarkStarted(ctx context.Context, id string, at time.Time) (bool, error)
	// UpdateProgress writes the aggregator's projection in one update.
	UpdateProgress(ctx context.Context, id string, p models.InterviewProgress) error
	Delete(ctx context.Context, id string) error
}

type interviewRepo struct {
	col *mongo.Collection
}

func NewInterviewRepo(db *mongo.Database) InterviewRepository {
	return &interviewRepo{col: db.Collection("interviews")}
}

func (r *interviewRepo) Create(ctx context.Context, i *models.Interview) error {
	now := time.Now().UTC()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	if i.Status == "" {
		i.Status = models.InterviewPending
	}
	_, err := r.col.InsertOne(ctx, i)
	return err
}

func (r *interviewRepo) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var i models.Interview
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&i)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Interview, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Interview{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *interviewRepo) MarkStarted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.InterviewPending},
		bson.M{"$set": bson.M{
			"status":     models.InterviewInProgress,
			"started_at": at.UTC(),
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *interviewRepo) UpdateProgress(ctx context.Context, id string, p models.InterviewProgress) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, progressUpdate(p, time.Now().UTC()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *interviewRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func progressUpdate(p models.InterviewProgress, now time.Time) bson.M {
	set := bson.M{
		"status":              p.Status,
		"progress_pct":        p.ProgressPct,
		"overall_score":       p.OverallScore,
		"completed_questions": p.CompletedQuestions,
		"passed_questions":    p.PassedQuestions,
		"updated_at":          now,
	}
	if p.CompletedAt != nil {
		set["completed_at"] = p.CompletedAt.UTC()
		return bson.M{"$set": set}
	}
	return bson.M{"$set": set, "$unset": bson.M{"completed_at": ""}}
}
