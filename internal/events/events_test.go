package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/interviewx/internal/models"
)

func TestNewEvaluationUpdated(t *testing.T) {
	score, passed := 77.5, true
	ev := NewEvaluationUpdated(&models.Evaluation{
		ID:           "e1",
		InterviewID:  "iv1",
		QuestionID:   "q1",
		CandidateID:  "u1",
		Status:       models.EvaluationCompleted,
		OverallScore: &score,
		Passed:       &passed,
		Grade:        models.GradeC,
	})

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))

	assert.Equal(t, "e1", wire["evaluationId"])
	assert.Equal(t, "iv1", wire["interviewId"])
	assert.Equal(t, "completed", wire["status"])
	assert.Equal(t, 77.5, wire["overallScore"])
	assert.Equal(t, "C", wire["grade"])
	assert.NotContains(t, wire, "error")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishEvaluationUpdated(context.Background(), EvaluationUpdated{EvaluationID: "e1"}))
}
