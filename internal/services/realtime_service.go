package services

import (
	"context"
	"math"
	"strings"

	"github.com/yoockh/interviewx/internal/models"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	"github.com/yoockh/interviewx/internal/utils"
)

// RealtimeService backs the live coaching channel.
type RealtimeService interface {
	// OpenSession authorizes a live session on an evaluation that is still being answered.
	OpenSession(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error)
	JoinInterview(ctx context.Context, userID, interviewID string) (*models.Interview, error)
	SaveTranscript(ctx context.Context, evaluationID, transcript string) error
	RecordEvent(ctx context.Context, e *models.RealtimeEvent) error
	Summary(ctx context.Context, userID, evaluationID string) (*models.RealtimeSummary, error)
}

type realtimeService struct {
	interviews  mongorepo.InterviewRepository
	evaluations mongorepo.EvaluationRepository
	events      mongorepo.RealtimeEventRepository
}

func NewRealtimeService(interviews mongorepo.InterviewRepository, evaluations mongorepo.EvaluationRepository, events mongorepo.RealtimeEventRepository) RealtimeService {
	return &realtimeService{interviews: interviews, evaluations: evaluations, events: events}
}

func (s *realtimeService) OpenSession(ctx context.Context, userID, evaluationID string) (*models.Evaluation, error) {
	const op = "RealtimeService.OpenSession"

	if evaluationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "evaluationId is required", nil)
	}
	ev, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, repoErr(op, "evaluation", err)
	}
	if ev.CandidateID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	if ev.Status == models.EvaluationCompleted {
		return nil, utils.E(utils.CodeInvalidState, op, "evaluation is already completed", nil)
	}
	return ev, nil
}

func (s *realtimeService) JoinInterview(ctx context.Context, userID, interviewID string) (*models.Interview, error) {
	const op = "RealtimeService.JoinInterview"

	if interviewID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interviewId is required", nil)
	}
	iv, err := s.interviews.GetByID(ctx, interviewID)
	if err != nil {
		return nil, repoErr(op, "interview", err)
	}
	if iv.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	return iv, nil
}

func (s *realtimeService) SaveTranscript(ctx context.Context, evaluationID, transcript string) error {
	const op = "RealtimeService.SaveTranscript"

	if err := s.evaluations.Update(ctx, evaluationID, models.EvaluationPatch{LiveTranscript: &transcript}); err != nil {
		return repoErr(op, "evaluation", err)
	}
	return nil
}

func (s *realtimeService) RecordEvent(ctx context.Context, e *models.RealtimeEvent) error {
	const op = "RealtimeService.RecordEvent"

	if err := s.events.Insert(ctx, e); err != nil {
		return utils.E(utils.CodePersistenceFailure, op, "failed to record realtime event", err)
	}
	return nil
}

func (s *realtimeService) Summary(ctx context.Context, userID, evaluationID string) (*models.RealtimeSummary, error) {
	const op = "RealtimeService.Summary"

	ev, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, repoErr(op, "evaluation", err)
	}
	if ev.CandidateID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	list, err := s.events.ListByEvaluation(ctx, evaluationID, 0)
	if err != nil {
		return nil, repoErr(op, "realtime events", err)
	}
	sum := SummarizeRealtime(evaluationID, list)
	if sum.Transcript == "" {
		sum.Transcript = ev.LiveTranscript
	}
	return &sum, nil
}

// SummarizeRealtime folds logged live feedback into averages.
func SummarizeRealtime(evaluationID string, list []models.RealtimeEvent) models.RealtimeSummary {
	out := models.RealtimeSummary{EvaluationID: evaluationID}
	var confSum, qualSum float64
	var segments []string
	for _, e := range list {
		switch e.Kind {
		case models.RealtimeFacial:
			out.FacialSamples++
			confSum += e.ConfidenceScore
			if e.LowConfidence {
				out.LowConfidenceWarnings++
			}
		case models.RealtimeAudio:
			out.AudioSegments++
			qualSum += e.AudioQualityScore
			if t := strings.TrimSpace(e.Transcription); t != "" {
				segments = append(segments, t)
			}
		}
	}
	if out.FacialSamples > 0 {
		out.AverageConfidence = round2(confSum / float64(out.FacialSamples))
	}
	if out.AudioSegments > 0 {
		out.AverageAudioQuality = round2(qualSum / float64(out.AudioSegments))
	}
	out.Transcript = strings.Join(segments, " ")
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
