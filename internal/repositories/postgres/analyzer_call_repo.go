package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/interviewx/internal/models"
	"gorm.io/gorm"
)

// AnalyzerCallRepo is the append-only ledger of analyzer invocations.
type AnalyzerCallRepo interface {
	Insert(ctx context.Context, call *models.AnalyzerCall) error
	ListByEvaluation(ctx context.Context, evaluationID string, limit int) ([]models.AnalyzerCall, error)
	DeleteByEvaluation(ctx context.Context, evaluationID string) error
}

type analyzerCallRepo struct {
	db *gorm.DB
}

func NewAnalyzerCallRepo(db *gorm.DB) AnalyzerCallRepo {
	return &analyzerCallRepo{db: db}
}

func (r *analyzerCallRepo) Insert(ctx context.Context, call *models.AnalyzerCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *analyzerCallRepo) ListByEvaluation(ctx context.Context, evaluationID string, limit int) ([]models.AnalyzerCall, error) {
	if limit <= 0 {
		limit = 50
	}

	rows := []models.AnalyzerCall{}
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *analyzerCallRepo) DeleteByEvaluation(ctx context.Context, evaluationID string) error {
	return r.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Delete(&models.AnalyzerCall{}).Error
}

// NopAnalyzerCallRepo is used when no Postgres is configured.
type NopAnalyzerCallRepo struct{}

func (NopAnalyzerCallRepo) Insert(context.Context, *models.AnalyzerCall) error { return nil }

func (NopAnalyzerCallRepo) ListByEvaluation(context.Context, string, int) ([]models.AnalyzerCall, error) {
	return []models.AnalyzerCall{}, nil
}

func (NopAnalyzerCallRepo) DeleteByEvaluation(context.Context, string) error { return nil }
