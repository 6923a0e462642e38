package services

import (
	"context"
	"errors"

	"github.com/yoockh/interviewx/internal/utils"
)

// Enqueuer hands an evaluation id to the orchestration workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, evaluationID string) error
}

// OrchestrationObserver receives one outcome per orchestration attempt.
type OrchestrationObserver interface {
	ObserveOrchestration(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveOrchestration(string) {}

// StatusCacheKey is where completed status views are cached.
func StatusCacheKey(evaluationID string) string {
	return "evaluation:status:" + evaluationID
}

// repoErr converts repository sentinels into AppErrors for op.
func repoErr(op, what string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, what+" not found", err)
	case errors.Is(err, utils.ErrStateMismatch):
		return utils.E(utils.CodeInvalidState, op, what+" is not in the expected state", err)
	default:
		return utils.E(utils.CodePersistenceFailure, op, "failed to access "+what, err)
	}
}
