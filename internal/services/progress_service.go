package services

import (
	"context"
	"math"
	"time"

	"github.com/yoockh/interviewx/internal/models"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	"github.com/yoockh/interviewx/internal/utils"
)

// ProgressService keeps an interview's aggregates in line with its evaluations.
type ProgressService interface {
	Recompute(ctx context.Context, interviewID string) (*models.InterviewProgress, error)
}

type progressService struct {
	interviews  mongorepo.InterviewRepository
	evaluations mongorepo.EvaluationRepository
	now         func() time.Time
}

func NewProgressService(interviews mongorepo.InterviewRepository, evaluations mongorepo.EvaluationRepository) ProgressService {
	return &progressService{
		interviews:  interviews,
		evaluations: evaluations,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Recompute rebuilds the projection from every owned evaluation and writes it
// in one update. Safe to call any number of times.
func (s *progressService) Recompute(ctx context.Context, interviewID string) (*models.InterviewProgress, error) {
	const op = "ProgressService.Recompute"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview_id is required", nil)
	}

	iv, err := s.interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, repoErr(op, "interview", err)
	}
	evals, err := s.evaluations.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, repoErr(op, "evaluations", err)
	}

	p := ComputeProgress(iv, evals, s.now())
	if err := s.interviews.UpdateProgress(ctx, interviewID, p); err != nil {
		return nil, repoErr(op, "interview", err)
	}
	return &p, nil
}

// ComputeProgress is the pure projection of evaluations onto an interview.
// Only evaluations of questions that still exist on the interview count.
func ComputeProgress(iv *models.Interview, evals []models.Evaluation, now time.Time) models.InterviewProgress {
	total := len(iv.Questions)

	completed := map[string]bool{}
	passed := 0
	sum := 0.0
	for _, e := range evals {
		if e.Status != models.EvaluationCompleted || completed[e.QuestionID] {
			continue
		}
		if _, ok := iv.Question(e.QuestionID); !ok {
			continue
		}
		completed[e.QuestionID] = true
		if e.OverallScore != nil {
			sum += *e.OverallScore
		}
		if e.Passed != nil && *e.Passed {
			passed++
		}
	}
	done := len(completed)

	p := models.InterviewProgress{
		Status:             iv.Status,
		CompletedQuestions: done,
		PassedQuestions:    passed,
		CompletedAt:        iv.CompletedAt,
	}
	if done > 0 {
		p.OverallScore = math.Round(sum/float64(done)*100) / 100
	}
	if total > 0 {
		p.ProgressPct = int(math.Round(100 * float64(done) / float64(total)))
	}

	if iv.Status == models.InterviewCancelled {
		return p
	}
	switch {
	case total > 0 && done == total:
		p.Status = models.InterviewCompleted
		if p.CompletedAt == nil {
			at := now
			p.CompletedAt = &at
		}
	case done > 0:
		p.Status = models.InterviewInProgress
		p.CompletedAt = nil
	case iv.Status == models.InterviewCompleted:
		// every completed evaluation was deleted
		p.Status = models.InterviewInProgress
		p.CompletedAt = nil
	}
	return p
}
