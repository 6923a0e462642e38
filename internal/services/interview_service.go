package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/cache"
	"github.com/yoockh/interviewx/internal/models"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interviewx/internal/repositories/postgres"
	"github.com/yoockh/interviewx/internal/storage"
	"github.com/yoockh/interviewx/internal/utils"
)

type CreateInterviewInput struct {
	Title     string            `json:"title"`
	Type      string            `json:"type"`
	Duration  int               `json:"duration"`
	Questions []models.Question `json:"questions"`
}

type InterviewService interface {
	Create(ctx context.Context, userID string, in CreateInterviewInput) (*models.Interview, error)
	Get(ctx context.Context, userID, interviewID string) (*models.Interview, error)
	List(ctx context.Context, userID string, limit int64) ([]models.Interview, error)
	Delete(ctx context.Context, userID, interviewID string) error
}

type InterviewDeps struct {
	Interviews  mongorepo.InterviewRepository
	Evaluations mongorepo.EvaluationRepository
	Realtime    mongorepo.RealtimeEventRepository
	Calls       pgrepo.AnalyzerCallRepo
	Media       storage.MediaStore
	Cache       cache.Cache
	Logger      *logrus.Logger
}

type interviewService struct {
	interviews  mongorepo.InterviewRepository
	evaluations mongorepo.EvaluationRepository
	purger      purger
}

func NewInterviewService(deps InterviewDeps) InterviewService {
	if deps.Calls == nil {
		deps.Calls = pgrepo.NopAnalyzerCallRepo{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &interviewService{
		interviews:  deps.Interviews,
		evaluations: deps.Evaluations,
		purger: purger{
			media:    deps.Media,
			realtime: deps.Realtime,
			calls:    deps.Calls,
			cache:    deps.Cache,
			logger:   deps.Logger,
		},
	}
}

func (s *interviewService) Create(ctx context.Context, userID string, in CreateInterviewInput) (*models.Interview, error) {
	const op = "InterviewService.Create"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title is required", nil)
	}
	typ := models.InterviewType(strings.TrimSpace(in.Type))
	if !typ.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "type must be technical, behavioral, coding or system-design", nil)
	}
	if in.Duration < models.MinInterviewDuration || in.Duration > models.MaxInterviewDuration {
		return nil, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("duration must be between %d and %d minutes", models.MinInterviewDuration, models.MaxInterviewDuration), nil)
	}
	if len(in.Questions) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one question is required", nil)
	}

	questions := make([]models.Question, 0, len(in.Questions))
	seen := map[string]bool{}
	for i, q := range in.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("question %d has no text", i+1), nil)
		}
		if q.TimeLimit < 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("question %d has a negative time limit", i+1), nil)
		}
		for _, m := range q.AllowedModalities {
			if m != models.ModalityVideo && m != models.ModalityAudio && m != models.ModalityText {
				return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("question %d has unknown modality %q", i+1, m), nil)
			}
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}

	iv := &models.Interview{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Type:      typ,
		Duration:  in.Duration,
		Status:    models.InterviewPending,
		Questions: questions,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.interviews.Create(ctx, iv); err != nil {
		return nil, repoErr(op, "interview", err)
	}
	return iv, nil
}

func (s *interviewService) Get(ctx context.Context, userID, interviewID string) (*models.Interview, error) {
	const op = "InterviewService.Get"

	iv, err := s.interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, repoErr(op, "interview", err)
	}
	if iv.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	return iv, nil
}

func (s *interviewService) List(ctx context.Context, userID string, limit int64) ([]models.Interview, error) {
	const op = "InterviewService.List"

	out, err := s.interviews.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, repoErr(op, "interviews", err)
	}
	return out, nil
}

// Delete removes an interview with its evaluations and everything they own. Refused
// while any evaluation is being processed.
func (s *interviewService) Delete(ctx context.Context, userID, interviewID string) error {
	const op = "InterviewService.Delete"

	iv, err := s.Get(ctx, userID, interviewID)
	if err != nil {
		return err
	}

	busy, err := s.evaluations.CountByInterviewAndStatus(ctx, iv.ID, models.EvaluationProcessing)
	if err != nil {
		return repoErr(op, "evaluations", err)
	}
	if busy > 0 {
		return utils.E(utils.CodeInvalidState, op, "interview has evaluations being processed", nil)
	}

	evals, err := s.evaluations.ListByInterview(ctx, iv.ID)
	if err != nil {
		return repoErr(op, "evaluations", err)
	}
	if _, err := s.evaluations.DeleteByInterview(ctx, iv.ID); err != nil {
		return repoErr(op, "evaluations", err)
	}
	if err := s.interviews.Delete(ctx, iv.ID); err != nil {
		return repoErr(op, "interview", err)
	}

	for i := range evals {
		s.purger.purge(ctx, &evals[i])
	}
	return nil
}
