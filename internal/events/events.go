package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/models"
)

const EvaluationUpdatedChannel = "evaluation:updated"

// EvaluationUpdated is broadcast whenever an evaluation reaches a terminal state.
type EvaluationUpdated struct {
	EvaluationID string                  `json:"evaluationId"`
	InterviewID  string                  `json:"interviewId"`
	QuestionID   string                  `json:"questionId"`
	CandidateID  string                  `json:"candidateId"`
	Status       models.EvaluationStatus `json:"status"`
	OverallScore *float64                `json:"overallScore,omitempty"`
	Passed       *bool                   `json:"passed,omitempty"`
	Grade        models.Grade            `json:"grade,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

func NewEvaluationUpdated(e *models.Evaluation) EvaluationUpdated {
	return EvaluationUpdated{
		EvaluationID: e.ID,
		InterviewID:  e.InterviewID,
		QuestionID:   e.QuestionID,
		CandidateID:  e.CandidateID,
		Status:       e.Status,
		OverallScore: e.OverallScore,
		Passed:       e.Passed,
		Grade:        e.Grade,
		Error:        e.Error,
	}
}

type Publisher interface {
	PublishEvaluationUpdated(ctx context.Context, ev EvaluationUpdated) error
}

// RedisBus fans evaluation updates out to every API instance over Redis pub/sub.
type RedisBus struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisBus(rdb *redis.Client, logger *logrus.Logger) *RedisBus {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisBus{rdb: rdb, logger: logger}
}

func (b *RedisBus) PublishEvaluationUpdated(ctx context.Context, ev EvaluationUpdated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, EvaluationUpdatedChannel, payload).Err()
}

// SubscribeEvaluationUpdated calls fn for every update until ctx is done.
func (b *RedisBus) SubscribeEvaluationUpdated(ctx context.Context, fn func(EvaluationUpdated)) {
	sub := b.rdb.Subscribe(ctx, EvaluationUpdatedChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev EvaluationUpdated
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.WithError(err).Warn("bad evaluation update payload")
					continue
				}
				fn(ev)
			}
		}
	}()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishEvaluationUpdated(context.Context, EvaluationUpdated) error { return nil }
