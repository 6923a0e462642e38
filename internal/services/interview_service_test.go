package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/utils"
)

func validInterviewInput() CreateInterviewInput {
	return CreateInterviewInput{
		Title:    " Backend screen ",
		Type:     "technical",
		Duration: 30,
		Questions: []models.Question{
			{ID: "q1", Text: "Explain indexes", TimeLimit: 90},
			{ID: "q1", Text: "Explain sharding"},
			{Text: " Explain replication ", AllowedModalities: []models.Modality{models.ModalityText}},
		},
	}
}

func TestCreateInterview(t *testing.T) {
	ivs := newFakeInterviews()
	svc := NewInterviewService(InterviewDeps{Interviews: ivs, Evaluations: newFakeEvaluations(), Media: newFakeMedia(), Logger: quietLogger()})

	iv, err := svc.Create(context.Background(), "u1", validInterviewInput())
	require.NoError(t, err)
	assert.Equal(t, "Backend screen", iv.Title)
	assert.Equal(t, models.InterviewPending, iv.Status)
	assert.Equal(t, "u1", iv.UserID)
	require.Len(t, iv.Questions, 3)
	assert.Equal(t, "q1", iv.Questions[0].ID)
	assert.NotEqual(t, "q1", iv.Questions[1].ID)
	assert.NotEmpty(t, iv.Questions[2].ID)
	assert.Equal(t, "Explain replication", iv.Questions[2].Text)

	stored := ivs.get(iv.ID)
	assert.Equal(t, iv.Title, stored.Title)
}

func TestCreateInterviewValidation(t *testing.T) {
	cases := map[string]func(*CreateInterviewInput){
		"blank title":      func(in *CreateInterviewInput) { in.Title = "  " },
		"unknown type":     func(in *CreateInterviewInput) { in.Type = "trivia" },
		"too short":        func(in *CreateInterviewInput) { in.Duration = 4 },
		"too long":         func(in *CreateInterviewInput) { in.Duration = 121 },
		"no questions":     func(in *CreateInterviewInput) { in.Questions = nil },
		"blank question":   func(in *CreateInterviewInput) { in.Questions[1].Text = "" },
		"negative limit":   func(in *CreateInterviewInput) { in.Questions[0].TimeLimit = -1 },
		"unknown modality": func(in *CreateInterviewInput) { in.Questions[0].AllowedModalities = []models.Modality{"smell"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInterviewInput()
			mutate(&in)
			svc := NewInterviewService(InterviewDeps{Interviews: newFakeInterviews(), Evaluations: newFakeEvaluations(), Media: newFakeMedia(), Logger: quietLogger()})
			_, err := svc.Create(context.Background(), "u1", in)
			assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
		})
	}
}

func TestGetInterviewOwnership(t *testing.T) {
	svc := NewInterviewService(InterviewDeps{Interviews: newFakeInterviews(pendingInterview()), Evaluations: newFakeEvaluations(), Media: newFakeMedia(), Logger: quietLogger()})

	iv, err := svc.Get(context.Background(), "u1", "iv1")
	require.NoError(t, err)
	assert.Equal(t, "iv1", iv.ID)

	_, err = svc.Get(context.Background(), "u2", "iv1")
	assert.Equal(t, utils.CodeForbidden, utils.CodeOf(err))

	_, err = svc.Get(context.Background(), "u1", "missing")
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestDeleteInterviewCascades(t *testing.T) {
	a := openEvaluation("e1", "q1")
	a.Status, a.VideoPath = models.EvaluationCompleted, "evaluations/e1/video/x.webm"
	b := openEvaluation("e2", "q2")
	b.AudioPath = "evaluations/e2/audio/y.wav"

	ivs := newFakeInterviews(pendingInterview())
	evals := newFakeEvaluations(a, b)
	media := newFakeMedia(a.VideoPath, b.AudioPath)
	realtime := &fakeRealtimeEvents{list: []models.RealtimeEvent{
		{EvaluationID: "e1", Kind: models.RealtimeFacial},
		{EvaluationID: "e2", Kind: models.RealtimeAudio},
		{EvaluationID: "other", Kind: models.RealtimeAudio},
	}}
	calls := &fakeCalls{rows: []models.AnalyzerCall{{EvaluationID: "e1", Service: "facial"}, {EvaluationID: "other", Service: "text"}}}
	statusCache := newFakeCache()
	svc := NewInterviewService(InterviewDeps{
		Interviews:  ivs,
		Evaluations: evals,
		Realtime:    realtime,
		Calls:       calls,
		Media:       media,
		Cache:       statusCache,
		Logger:      quietLogger(),
	})

	require.NoError(t, svc.Delete(context.Background(), "u1", "iv1"))
	_, err := ivs.GetByID(context.Background(), "iv1")
	assert.ErrorIs(t, err, utils.ErrNotFound)
	list, _ := evals.ListByInterview(context.Background(), "iv1")
	assert.Empty(t, list)
	assert.Zero(t, media.count())

	require.Len(t, realtime.list, 1)
	assert.Equal(t, "other", realtime.list[0].EvaluationID)
	require.Len(t, calls.rows, 1)
	assert.Equal(t, "other", calls.rows[0].EvaluationID)
	assert.ElementsMatch(t, []string{StatusCacheKey("e1"), StatusCacheKey("e2")}, statusCache.dels)
}

func TestDeleteInterviewRefusedWhileProcessing(t *testing.T) {
	busy := openEvaluation("e1", "q1")
	busy.Status = models.EvaluationProcessing

	ivs := newFakeInterviews(pendingInterview())
	svc := NewInterviewService(InterviewDeps{Interviews: ivs, Evaluations: newFakeEvaluations(busy), Media: newFakeMedia(), Logger: quietLogger()})

	err := svc.Delete(context.Background(), "u1", "iv1")
	assert.Equal(t, utils.CodeInvalidState, utils.CodeOf(err))
	_, err = ivs.GetByID(context.Background(), "iv1")
	assert.NoError(t, err)
}
