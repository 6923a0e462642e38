package services

import (
	"context"
	"fmt"

	"github.com/yoockh/interviewx/internal/models"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interviewx/internal/repositories/postgres"
	"github.com/yoockh/interviewx/internal/utils"
)

// AnalysisLogService exposes the analyzer call ledger of an evaluation.
type AnalysisLogService interface {
	ListCalls(ctx context.Context, userID, evaluationID string) ([]models.AnalyzerCall, error)
}

type analysisLogService struct {
	evaluations mongorepo.EvaluationRepository
	calls       pgrepo.AnalyzerCallRepo
}

func NewAnalysisLogService(evaluations mongorepo.EvaluationRepository, calls pgrepo.AnalyzerCallRepo) AnalysisLogService {
	if calls == nil {
		calls = pgrepo.NopAnalyzerCallRepo{}
	}
	return &analysisLogService{evaluations: evaluations, calls: calls}
}

func (s *analysisLogService) ListCalls(ctx context.Context, userID, evaluationID string) ([]models.AnalyzerCall, error) {
	const op = "AnalysisLogService.ListCalls"

	ev, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, repoErr(op, "evaluation", err)
	}
	if ev.CandidateID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "access denied", nil)
	}
	rows, err := s.calls.ListByEvaluation(ctx, evaluationID, 100)
	if err != nil {
		return nil, utils.E(utils.CodePersistenceFailure, op, fmt.Sprintf("failed to list analyzer calls for %s", evaluationID), err)
	}
	return rows, nil
}
