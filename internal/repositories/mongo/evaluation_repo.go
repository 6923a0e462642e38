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

type EvaluationRepository interface {
	Create(ctx context.Context, e *models.Evaluation) error
	GetByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindByTuple(ctx context.Context, interviewID, questionID, candidateID string) (*models.Evaluation, error)
	ListByInterview(ctx context.Context, interviewID string) ([]models.Evaluation, error)
	// ListStaleProcessing returns processing evaluations whose lease expired
	// (or was never taken) before staleBefore.
	ListStaleProcessing(ctx context.Context, staleBefore time.Time, limit int64) ([]models.Evaluation, error)
	CountByInterviewAndStatus(ctx context.Context, interviewID string, status models.EvaluationStatus) (int64, error)

	// Update applies patch without any status guard.
	Update(ctx context.Context, id string, patch models.EvaluationPatch) error
	// FindAndUpdate atomically moves id from one status to another, applying
	// patch in the same write. Returns utils.ErrStateMismatch when the record is
	// not in `from` or the guard does not hold.
	FindAndUpdate(ctx context.Context, id string, from, to models.EvaluationStatus, guard models.TransitionGuard, patch models.EvaluationPatch) (*models.Evaluation, error)

	// Delete refuses (utils.ErrStateMismatch) while the evaluation is processing.
	Delete(ctx context.Context, id string) error
	DeleteByInterview(ctx context.Context, interviewID string) (int64, error)
}

type evaluationRepo struct {
	col *mongo.Collection
}

func NewEvaluationRepo(db *mongo.Database) EvaluationRepository {
	return &evaluationRepo{col: db.Collection("evaluations")}
}

func (r *evaluationRepo) Create(ctx context.Context, e *models.Evaluation) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *evaluationRepo) GetByID(ctx context.Context, id string) (*models.Evaluation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *evaluationRepo) FindByTuple(ctx context.Context, interviewID, questionID, candidateID string) (*models.Evaluation, error) {
	return r.findOne(ctx, bson.M{
		"interview_id": interviewID,
		"question_id":  questionID,
		"candidate_id": candidateID,
	})
}

func (r *evaluationRepo) findOne(ctx context.Context, filter bson.M) (*models.Evaluation, error) {
	var e models.Evaluation
	err := r.col.FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *evaluationRepo) ListByInterview(ctx context.Context, interviewID string) ([]models.Evaluation, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"interview_id": interviewID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Evaluation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *evaluationRepo) ListStaleProcessing(ctx context.Context, staleBefore time.Time, limit int64) ([]models.Evaluation, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx, staleFilter(staleBefore),
		options.Find().
			SetSort(bson.D{{Key: "submitted_at", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Evaluation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *evaluationRepo) CountByInterviewAndStatus(ctx context.Context, interviewID string, status models.EvaluationStatus) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"interview_id": interviewID, "status": status})
}

func (r *evaluationRepo) Update(ctx context.Context, id string, patch models.EvaluationPatch) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, evaluationUpdate(patch, "", time.Now().UTC()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *evaluationRepo) FindAndUpdate(ctx context.Context, id string, from, to models.EvaluationStatus, guard models.TransitionGuard, patch models.EvaluationPatch) (*models.Evaluation, error) {
	var out models.Evaluation
	err := r.col.FindOneAndUpdate(ctx,
		transitionFilter(id, from, guard),
		evaluationUpdate(patch, to, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrStateMismatch
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *evaluationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$ne": models.EvaluationProcessing},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return utils.ErrStateMismatch
}

func (r *evaluationRepo) DeleteByInterview(ctx context.Context, interviewID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"interview_id": interviewID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func transitionFilter(id string, from models.EvaluationStatus, guard models.TransitionGuard) bson.M {
	filter := bson.M{"_id": id, "status": from}
	if guard.Token != "" {
		filter["processing_token"] = guard.Token
	}
	if !guard.StaleBefore.IsZero() {
		filter["$or"] = bson.A{
			bson.M{"processing_started_at": bson.M{"$exists": false}},
			bson.M{"processing_started_at": nil},
			bson.M{"processing_started_at": bson.M{"$lt": guard.StaleBefore}},
		}
	}
	return filter
}

// staleFilter matches processing evaluations whose lease began before the
// cutoff. Without a lease stamp (missing or null) submitted_at decides.
func staleFilter(staleBefore time.Time) bson.M {
	return bson.M{
		"status": models.EvaluationProcessing,
		"$or": bson.A{
			bson.M{"processing_started_at": bson.M{"$lt": staleBefore}},
			bson.M{
				"processing_started_at": nil,
				"submitted_at":          bson.M{"$lt": staleBefore},
			},
		},
	}
}

var resultFields = []string{
	"facial_analysis", "audio_analysis", "text_analysis",
	"overall_score", "individual_scores", "thresholds_met", "passed", "grade", "feedback",
	"analysis_errors", "completed_at", "processing_time_ms",
}

// evaluationUpdate renders a patch as an update document. Sets win over
// clears for the same field.
func evaluationUpdate(p models.EvaluationPatch, to models.EvaluationStatus, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if to != "" {
		set["status"] = to
	}
	if p.ClearResults {
		for _, f := range resultFields {
			unset[f] = ""
		}
	}
	if p.ClearError {
		unset["error"] = ""
	}
	if p.ClearLease {
		unset["processing_started_at"] = ""
		unset["processing_token"] = ""
	}

	put := func(field string, v any) {
		set[field] = v
		delete(unset, field)
	}
	if p.VideoPath != nil {
		put("video_path", *p.VideoPath)
	}
	if p.AudioPath != nil {
		put("audio_path", *p.AudioPath)
	}
	if p.AnswerText != nil {
		put("answer_text", *p.AnswerText)
	}
	if p.LiveTranscript != nil {
		put("live_transcript", *p.LiveTranscript)
	}
	if p.FacialAnalysis != nil {
		put("facial_analysis", p.FacialAnalysis)
	}
	if p.AudioAnalysis != nil {
		put("audio_analysis", p.AudioAnalysis)
	}
	if p.TextAnalysis != nil {
		put("text_analysis", p.TextAnalysis)
	}
	if p.OverallScore != nil {
		put("overall_score", *p.OverallScore)
	}
	if p.IndividualScores != nil {
		put("individual_scores", p.IndividualScores)
	}
	if p.ThresholdsMet != nil {
		put("thresholds_met", p.ThresholdsMet)
	}
	if p.Passed != nil {
		put("passed", *p.Passed)
	}
	if p.Grade != nil {
		put("grade", *p.Grade)
	}
	if p.Feedback != nil {
		put("feedback", *p.Feedback)
	}
	if p.AnalysisErrors != nil {
		put("analysis_errors", p.AnalysisErrors)
	}
	if p.Error != nil {
		put("error", *p.Error)
	}
	if p.SubmittedAt != nil {
		put("submitted_at", p.SubmittedAt.UTC())
	}
	if p.CompletedAt != nil {
		put("completed_at", p.CompletedAt.UTC())
	}
	if p.ProcessingTimeMS != nil {
		put("processing_time_ms", *p.ProcessingTimeMS)
	}
	if p.ProcessingStartedAt != nil {
		put("processing_started_at", p.ProcessingStartedAt.UTC())
	}
	if p.ProcessingToken != nil {
		put("processing_token", *p.ProcessingToken)
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if p.IncRetryCount {
		update["$inc"] = bson.M{"retry_count": 1}
	}
	return update
}
