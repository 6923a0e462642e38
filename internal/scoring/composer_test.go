package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/interviewx/internal/models"
)

func facial(score float64) *models.FacialAnalysis {
	return &models.FacialAnalysis{FacialResult: models.FacialResult{ConfidenceScore: score, FaceDetected: true}}
}

func audio(score float64) *models.AudioAnalysis {
	return &models.AudioAnalysis{AudioResult: models.AudioResult{AudioQualityScore: score}}
}

func text(score float64) *models.TextAnalysis {
	return &models.TextAnalysis{TextResult: models.TextResult{OverallScore: score}}
}

func TestComposeAllHigh(t *testing.T) {
	c := Compose(Inputs{Facial: facial(92), Audio: audio(85), Text: text(88)})

	assert.Equal(t, models.IndividualScores{Facial: 92, Audio: 85, Text: 88}, c.Individual)
	assert.Equal(t, 88.25, c.OverallScore)
	assert.True(t, c.Passed)
	assert.Equal(t, models.GradeB, c.Grade)
	assert.Contains(t, c.Feedback, "Excellent")
}

func TestComposeTextBelowThreshold(t *testing.T) {
	c := Compose(Inputs{Facial: facial(90), Audio: audio(80), Text: text(70)})

	assert.Equal(t, 82.5, c.OverallScore)
	assert.False(t, c.Passed)
	assert.Equal(t, models.GradeB, c.Grade)
	assert.True(t, c.ThresholdsMet.Facial)
	assert.True(t, c.ThresholdsMet.Audio)
	assert.False(t, c.ThresholdsMet.Text)
	assert.Contains(t, c.Feedback, "Answer content")
	assert.NotContains(t, c.Feedback, "Facial confidence")
	assert.NotContains(t, c.Feedback, "Audio quality")
}

func TestComposeFailedPartialScoresZero(t *testing.T) {
	down := &models.FacialAnalysis{PartialFailure: models.PartialFailure{Failed: true, ErrorKind: "ServiceUnavailable", Error: "service unavailable"}}
	c := Compose(Inputs{Facial: down, Audio: audio(85), Text: text(90)})

	assert.Equal(t, 0.0, c.Individual.Facial)
	assert.Equal(t, 66.25, c.OverallScore)
	assert.False(t, c.Passed)
}

func TestComposeAbsentModalities(t *testing.T) {
	c := Compose(Inputs{Text: text(100)})

	assert.Equal(t, 50.0, c.OverallScore)
	assert.False(t, c.ThresholdsMet.Facial)
	assert.False(t, c.ThresholdsMet.Audio)
	assert.False(t, c.Passed)
	assert.Equal(t, models.GradeF, c.Grade)
}

func TestComposeFeedbackOrdering(t *testing.T) {
	c := Compose(Inputs{})

	f := c.Feedback
	fi := strings.Index(f, "Facial confidence")
	ai := strings.Index(f, "Audio quality")
	ti := strings.Index(f, "Answer content")
	require.True(t, fi >= 0 && ai >= 0 && ti >= 0, f)
	assert.Less(t, fi, ai)
	assert.Less(t, ai, ti)
}

func TestComposeOverallGate(t *testing.T) {
	// thresholds are inclusive at every boundary
	c := Compose(Inputs{Facial: facial(80), Audio: audio(60), Text: text(80)})

	assert.Equal(t, 75.0, c.OverallScore)
	assert.True(t, c.Passed)

	c = Compose(Inputs{Facial: facial(80), Audio: audio(60), Text: text(79.9)})
	assert.False(t, c.Passed)
}

func TestComposeClampsOutOfRange(t *testing.T) {
	c := Compose(Inputs{Facial: facial(140), Audio: audio(-3), Text: text(100)})

	assert.Equal(t, 100.0, c.Individual.Facial)
	assert.Equal(t, 0.0, c.Individual.Audio)
	assert.Equal(t, 75.0, c.OverallScore)
}

func TestGradeBrackets(t *testing.T) {
	cases := map[float64]models.Grade{
		100: models.GradeA, 90: models.GradeA, 89.99: models.GradeB, 80: models.GradeB,
		79.5: models.GradeC, 70: models.GradeC, 60: models.GradeD, 59.99: models.GradeF, 0: models.GradeF,
	}
	for score, want := range cases {
		assert.Equal(t, want, GradeFor(score), "score %v", score)
	}
}

func TestComposeIsReproducibleFromEvaluation(t *testing.T) {
	in := Inputs{Facial: facial(71.3), Audio: audio(64.2), Text: text(83.35)}
	first := Compose(in)

	passed := first.Passed
	e := &models.Evaluation{
		FacialAnalysis: in.Facial,
		AudioAnalysis:  in.Audio,
		TextAnalysis:   in.Text,
		OverallScore:   &first.OverallScore,
		Passed:         &passed,
		Grade:          first.Grade,
	}

	again := Compose(FromEvaluation(e))
	assert.Equal(t, first, again)
	assert.Equal(t, *e.OverallScore, again.OverallScore)
}
