package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/utils"
)

func TestSummarizeRealtime(t *testing.T) {
	list := []models.RealtimeEvent{
		{Kind: models.RealtimeFacial, ConfidenceScore: 80},
		{Kind: models.RealtimeFacial, ConfidenceScore: 55, LowConfidence: true},
		{Kind: models.RealtimeFacial, ConfidenceScore: 70},
		{Kind: models.RealtimeAudio, AudioQualityScore: 0.8, Transcription: "first part"},
		{Kind: models.RealtimeAudio, AudioQualityScore: 0.75, Transcription: "  "},
		{Kind: models.RealtimeAudio, AudioQualityScore: 0.9, Transcription: "second part "},
	}
	sum := SummarizeRealtime("e1", list)
	assert.Equal(t, "e1", sum.EvaluationID)
	assert.Equal(t, 3, sum.FacialSamples)
	assert.Equal(t, 68.33, sum.AverageConfidence)
	assert.Equal(t, 1, sum.LowConfidenceWarnings)
	assert.Equal(t, 3, sum.AudioSegments)
	assert.Equal(t, 0.82, sum.AverageAudioQuality)
	assert.Equal(t, "first part second part", sum.Transcript)

	empty := SummarizeRealtime("e2", nil)
	assert.Zero(t, empty.AverageConfidence)
	assert.Empty(t, empty.Transcript)
}

func TestOpenSession(t *testing.T) {
	done := openEvaluation("e2", "q2")
	done.Status = models.EvaluationCompleted
	svc := NewRealtimeService(newFakeInterviews(pendingInterview()), newFakeEvaluations(openEvaluation("e1", "q1"), done), &fakeRealtimeEvents{})

	ev, err := svc.OpenSession(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.ID)

	_, err = svc.OpenSession(context.Background(), "u2", "e1")
	assert.Equal(t, utils.CodeForbidden, utils.CodeOf(err))

	_, err = svc.OpenSession(context.Background(), "u1", "e2")
	assert.Equal(t, utils.CodeInvalidState, utils.CodeOf(err))

	_, err = svc.OpenSession(context.Background(), "u1", "")
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}

func TestRealtimeSummaryFallsBackToLiveTranscript(t *testing.T) {
	ev := openEvaluation("e1", "q1")
	ev.LiveTranscript = "cumulative words"
	evals := newFakeEvaluations(ev)
	rt := &fakeRealtimeEvents{}
	svc := NewRealtimeService(newFakeInterviews(pendingInterview()), evals, rt)

	require.NoError(t, svc.RecordEvent(context.Background(), &models.RealtimeEvent{EvaluationID: "e1", Kind: models.RealtimeFacial, ConfidenceScore: 90}))
	require.NoError(t, svc.SaveTranscript(context.Background(), "e1", "cumulative words and more"))

	sum, err := svc.Summary(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FacialSamples)
	assert.Equal(t, "cumulative words and more", sum.Transcript)
	assert.Equal(t, "cumulative words and more", evals.get("e1").LiveTranscript)

	_, err = svc.Summary(context.Background(), "u2", "e1")
	assert.Equal(t, utils.CodeForbidden, utils.CodeOf(err))
}
