package services

import (
	"context"
	"errors"
	"fmt"
	"io"
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

const (
	MaxVideoBytes int64 = 100 << 20
	MaxAudioBytes int64 = 50 << 20

	DefaultStatusCacheTTL = 10 * time.Minute
)

// MediaUpload is one file received at the upload boundary.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type SubmitInput struct {
	AnswerText string
	Video      *MediaUpload
	Audio      *MediaUpload
}

type EvaluationService interface {
	Start(ctx context.Context, userID, interviewID, questionID string) (*models.Evaluation, error)
	Submit(ctx context.Context, userID, evaluationID string, in SubmitInput) (*models.Evaluation, error)
	Get(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error)
	Status(ctx context.Context, userID, evaluationID string) (*models.EvaluationStatusView, error)
	Retry(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error)
	Delete(ctx context.Context, userID, evaluationID string) error
	ListByInterview(ctx context.Context, userID, interviewID string) ([]models.Evaluation, models.EvaluationSummary, error)
}

type IntakeConfig struct {
	MaxFileSize    int64
	StatusCacheTTL time.Duration
}

type EvaluationDeps struct {
	Interviews  mongorepo.InterviewRepository
	Evaluations mongorepo.EvaluationRepository
	Realtime    mongorepo.RealtimeEventRepository
	Calls       pgrepo.AnalyzerCallRepo
	Progress    ProgressService
	Media       storage.MediaStore
	Queue       Enqueuer
	Cache       cache.Cache
	Logger      *logrus.Logger
}

type evaluationService struct {
	EvaluationDeps
	cfg IntakeConfig
	now func() time.Time
}

func NewEvaluationService(deps EvaluationDeps, cfg IntakeConfig) EvaluationService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = MaxVideoBytes
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = DefaultStatusCacheTTL
	}
	if deps.Calls == nil {
		deps.Calls = pgrepo.NopAnalyzerCallRepo{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &evaluationService{
		EvaluationDeps: deps,
		cfg:            cfg,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *evaluationService) Start(ctx context.Context, userID, interviewID, questionID string) (*models.Evaluation, error) {
	const op = "EvaluationService.Start"

	if interviewID == "" || questionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interviewId and questionId are required", nil)
	}

	iv, err := s.Interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, repoErr(op, "interview", err)
	}
	if iv.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	q, ok := iv.Question(questionID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "question not found", nil)
	}
	if iv.Status == models.InterviewCompleted || iv.Status == models.InterviewCancelled {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("interview is %s", iv.Status), nil)
	}

	existing, err := s.Evaluations.FindByTuple(ctx, interviewID, questionID, userID)
	switch {
	case err == nil:
		return resumable(op, existing)
	case !errors.Is(err, utils.ErrNotFound):
		return nil, repoErr(op, "evaluation", err)
	}

	now := s.now()
	if iv.Status == models.InterviewPending {
		if _, err := s.Interviews.MarkStarted(ctx, iv.ID, now); err != nil {
			return nil, repoErr(op, "interview", err)
		}
	}

	ev := &models.Evaluation{
		ID:                uuid.NewString(),
		InterviewID:       iv.ID,
		QuestionID:        q.ID,
		CandidateID:       userID,
		Status:            models.EvaluationInProgress,
		QuestionText:      q.Text,
		ExpectedKeywords:  q.ExpectedKeywords,
		AllowedModalities: q.AllowedModalities,
		TimeLimit:         q.TimeLimit,
		StartedAt:         now,
	}
	if err := s.Evaluations.Create(ctx, ev); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			// a concurrent start won
			existing, ferr := s.Evaluations.FindByTuple(ctx, interviewID, questionID, userID)
			if ferr != nil {
				return nil, repoErr(op, "evaluation", ferr)
			}
			return resumable(op, existing)
		}
		return nil, repoErr(op, "evaluation", err)
	}
	return ev, nil
}

// resumable returns an evaluation that is still open for answering.
func resumable(op string, ev *models.Evaluation) (*models.Evaluation, error) {
	if ev.Status == models.EvaluationInProgress {
		return ev, nil
	}
	return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("question already answered (evaluation is %s)", ev.Status), nil)
}

func (s *evaluationService) Submit(ctx context.Context, userID, evaluationID string, in SubmitInput) (*models.Evaluation, error) {
	const op = "EvaluationService.Submit"

	answer := strings.TrimSpace(in.AnswerText)
	if answer == "" && in.Video == nil && in.Audio == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one of video, audio or answerText is required", nil)
	}
	if err := s.checkSize(op, "video", in.Video, MaxVideoBytes); err != nil {
		return nil, err
	}
	if err := s.checkSize(op, "audio", in.Audio, MaxAudioBytes); err != nil {
		return nil, err
	}

	ev, err := s.owned(ctx, op, userID, evaluationID)
	if err != nil {
		return nil, err
	}
	switch ev.Status {
	case models.EvaluationInProgress:
	case models.EvaluationFailed:
		return nil, utils.E(utils.CodeInvalidState, op, "evaluation failed; use retry", nil)
	default:
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("evaluation is %s", ev.Status), nil)
	}

	q := models.Question{AllowedModalities: ev.AllowedModalities}
	for _, c := range []struct {
		m       models.Modality
		present bool
	}{
		{models.ModalityVideo, in.Video != nil},
		{models.ModalityAudio, in.Audio != nil},
		{models.ModalityText, answer != ""},
	} {
		if c.present && !q.Allows(c.m) {
			return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("%s answers are not allowed for this question", c.m), nil)
		}
	}

	var stored []string
	cleanup := func() {
		for _, p := range stored {
			if err := s.Media.Delete(context.WithoutCancel(ctx), p); err != nil {
				s.Logger.WithError(err).WithField("path", p).Warn("failed to remove uploaded media")
			}
		}
	}

	patch := models.EvaluationPatch{ClearError: true}
	if in.Video != nil {
		p, err := s.Media.Upload(ctx, storage.ObjectName("evaluations/"+ev.ID+"/video", in.Video.Filename), in.Video.ContentType, in.Video.Content)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to store video", err)
		}
		stored = append(stored, p)
		patch.VideoPath = &p
	}
	if in.Audio != nil {
		p, err := s.Media.Upload(ctx, storage.ObjectName("evaluations/"+ev.ID+"/audio", in.Audio.Filename), in.Audio.ContentType, in.Audio.Content)
		if err != nil {
			cleanup()
			return nil, utils.E(utils.CodeInternal, op, "failed to store audio", err)
		}
		stored = append(stored, p)
		patch.AudioPath = &p
	}
	if answer != "" {
		patch.AnswerText = &answer
	}
	now := s.now()
	patch.SubmittedAt = &now

	updated, err := s.Evaluations.FindAndUpdate(ctx, ev.ID,
		models.EvaluationInProgress, models.EvaluationProcessing,
		models.TransitionGuard{}, patch,
	)
	if err != nil {
		cleanup()
		if errors.Is(err, utils.ErrStateMismatch) {
			return nil, utils.E(utils.CodeInvalidState, op, "evaluation was already submitted", err)
		}
		return nil, repoErr(op, "evaluation", err)
	}

	s.enqueue(ctx, updated.ID)
	return updated, nil
}

func (s *evaluationService) checkSize(op, field string, m *MediaUpload, limit int64) error {
	if m == nil {
		return nil
	}
	if m.Content == nil {
		return utils.E(utils.CodeInvalidArgument, op, field+" file is empty", nil)
	}
	if s.cfg.MaxFileSize < limit {
		limit = s.cfg.MaxFileSize
	}
	if m.Size > limit {
		return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("%s file exceeds %d MB", field, limit>>20), nil)
	}
	return nil
}

func (s *evaluationService) Get(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error) {
	return s.owned(ctx, "EvaluationService.Get", userID, evaluationID)
}

type cachedStatus struct {
	CandidateID string                      `json:"candidateId"`
	View        models.EvaluationStatusView `json:"view"`
}

func (s *evaluationService) Status(ctx context.Context, userID, evaluationID string) (*models.EvaluationStatusView, error) {
	const op = "EvaluationService.Status"

	key := StatusCacheKey(evaluationID)
	var hit cachedStatus
	if ok, err := s.Cache.GetJSON(ctx, key, &hit); err == nil && ok {
		if hit.CandidateID != userID {
			return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
		}
		return &hit.View, nil
	}

	ev, err := s.owned(ctx, op, userID, evaluationID)
	if err != nil {
		return nil, err
	}
	view := ev.StatusView()
	if ev.Status == models.EvaluationCompleted {
		if err := s.Cache.SetJSON(ctx, key, cachedStatus{CandidateID: ev.CandidateID, View: view}, s.cfg.StatusCacheTTL); err != nil {
			s.Logger.WithError(err).WithField("evaluation_id", ev.ID).Debug("status cache write failed")
		}
	}
	return &view, nil
}

func (s *evaluationService) Retry(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error) {
	const op = "EvaluationService.Retry"

	ev, err := s.owned(ctx, op, userID, evaluationID)
	if err != nil {
		return nil, err
	}
	if ev.Status != models.EvaluationFailed {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("only failed evaluations can be retried (evaluation is %s)", ev.Status), nil)
	}

	updated, err := s.Evaluations.FindAndUpdate(ctx, ev.ID,
		models.EvaluationFailed, models.EvaluationProcessing,
		models.TransitionGuard{},
		models.EvaluationPatch{ClearError: true, ClearResults: true, ClearLease: true, IncRetryCount: true},
	)
	if err != nil {
		if errors.Is(err, utils.ErrStateMismatch) {
			return nil, utils.E(utils.CodeInvalidState, op, "evaluation is no longer failed", err)
		}
		return nil, repoErr(op, "evaluation", err)
	}

	s.invalidate(ctx, updated.ID)
	s.enqueue(ctx, updated.ID)
	return updated, nil
}

func (s *evaluationService) Delete(ctx context.Context, userID, evaluationID string) error {
	const op = "EvaluationService.Delete"

	ev, err := s.owned(ctx, op, userID, evaluationID)
	if err != nil {
		return err
	}
	if ev.Status == models.EvaluationProcessing {
		return utils.E(utils.CodeInvalidState, op, "evaluation is being processed", nil)
	}
	if err := s.Evaluations.Delete(ctx, ev.ID); err != nil {
		if errors.Is(err, utils.ErrStateMismatch) {
			return utils.E(utils.CodeInvalidState, op, "evaluation is being processed", err)
		}
		return repoErr(op, "evaluation", err)
	}

	s.purge(ctx, ev)
	if _, err := s.Progress.Recompute(ctx, ev.InterviewID); err != nil {
		s.Logger.WithError(err).WithField("interview_id", ev.InterviewID).Error("interview progress recompute failed")
	}
	return nil
}

func (s *evaluationService) purge(ctx context.Context, ev *models.Evaluation) {
	purger{
		media:    s.Media,
		realtime: s.Realtime,
		calls:    s.Calls,
		cache:    s.Cache,
		logger:   s.Logger,
	}.purge(ctx, ev)
}

func (s *evaluationService) ListByInterview(ctx context.Context, userID, interviewID string) ([]models.Evaluation, models.EvaluationSummary, error) {
	const op = "EvaluationService.ListByInterview"

	iv, err := s.Interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, models.EvaluationSummary{}, repoErr(op, "interview", err)
	}
	if iv.UserID != userID {
		return nil, models.EvaluationSummary{}, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	list, err := s.Evaluations.ListByInterview(ctx, interviewID)
	if err != nil {
		return nil, models.EvaluationSummary{}, repoErr(op, "evaluations", err)
	}
	return list, models.SummarizeEvaluations(list), nil
}

func (s *evaluationService) owned(ctx context.Context, op, userID, evaluationID string) (*models.Evaluation, error) {
	if evaluationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "evaluation id is required", nil)
	}
	ev, err := s.Evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, repoErr(op, "evaluation", err)
	}
	if ev.CandidateID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	return ev, nil
}

// enqueue hands the evaluation to the workers. A lost message is recovered by
// the stale sweeper, so failures are only logged.
func (s *evaluationService) enqueue(ctx context.Context, evaluationID string) {
	if err := s.Queue.Enqueue(ctx, evaluationID); err != nil {
		s.Logger.WithError(err).WithField("evaluation_id", evaluationID).Warn("enqueue failed; left for the sweeper")
	}
}

func (s *evaluationService) invalidate(ctx context.Context, evaluationID string) {
	if err := s.Cache.Del(ctx, StatusCacheKey(evaluationID)); err != nil {
		s.Logger.WithError(err).WithField("evaluation_id", evaluationID).Warn("status cache invalidation failed")
	}
}
