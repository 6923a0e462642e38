// Package scoring turns analyzer partials into the composite grade of an answer.
// Everything here is pure and deterministic.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/yoockh/interviewx/internal/models"
)

const (
	FacialWeight = 0.25
	AudioWeight  = 0.25
	TextWeight   = 0.50

	FacialThreshold  = 80.0
	AudioThreshold   = 60.0
	TextThreshold    = 80.0
	OverallThreshold = 75.0
)

// Inputs carries the three optional partials. A nil or failed partial scores 0.
type Inputs struct {
	Facial *models.FacialAnalysis
	Audio  *models.AudioAnalysis
	Text   *models.TextAnalysis
}

type Composite struct {
	OverallScore  float64
	Individual    models.IndividualScores
	ThresholdsMet models.ThresholdsMet
	Passed        bool
	Grade         models.Grade
	Feedback      string
}

func Compose(in Inputs) Composite {
	ind := models.IndividualScores{
		Facial: facialScore(in.Facial),
		Audio:  audioScore(in.Audio),
		Text:   textScore(in.Text),
	}

	w := round2(FacialWeight*ind.Facial + AudioWeight*ind.Audio + TextWeight*ind.Text)

	th := models.ThresholdsMet{
		Facial:  ind.Facial >= FacialThreshold,
		Audio:   ind.Audio >= AudioThreshold,
		Text:    ind.Text >= TextThreshold,
		Overall: w >= OverallThreshold,
	}

	return Composite{
		OverallScore:  w,
		Individual:    ind,
		ThresholdsMet: th,
		Passed:        th.Facial && th.Audio && th.Text && th.Overall,
		Grade:         GradeFor(w),
		Feedback:      feedback(ind, th, w),
	}
}

// FromEvaluation rebuilds the inputs a completed evaluation was composed from.
func FromEvaluation(e *models.Evaluation) Inputs {
	return Inputs{Facial: e.FacialAnalysis, Audio: e.AudioAnalysis, Text: e.TextAnalysis}
}

func GradeFor(score float64) models.Grade {
	switch {
	case score >= 90:
		return models.GradeA
	case score >= 80:
		return models.GradeB
	case score >= 70:
		return models.GradeC
	case score >= 60:
		return models.GradeD
	default:
		return models.GradeF
	}
}

func facialScore(p *models.FacialAnalysis) float64 {
	if p == nil || p.Failed {
		return 0
	}
	return clamp(p.ConfidenceScore)
}

func audioScore(p *models.AudioAnalysis) float64 {
	if p == nil || p.Failed {
		return 0
	}
	return clamp(p.AudioQualityScore)
}

func textScore(p *models.TextAnalysis) float64 {
	if p == nil || p.Failed {
		return 0
	}
	return clamp(p.OverallScore)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func feedback(ind models.IndividualScores, th models.ThresholdsMet, w float64) string {
	if th.Facial && th.Audio && th.Text && th.Overall {
		return fmt.Sprintf("Excellent answer. All evaluation criteria were met with an overall score of %.2f.", w)
	}

	var b strings.Builder
	b.WriteString("Areas for improvement:")
	if !th.Facial {
		fmt.Fprintf(&b, "\n- Facial confidence scored %.0f (needs %.0f): keep steady eye contact with the camera and a relaxed, open posture.", ind.Facial, FacialThreshold)
	}
	if !th.Audio {
		fmt.Fprintf(&b, "\n- Audio quality scored %.0f (needs %.0f): speak clearly at a steady pace and reduce background noise.", ind.Audio, AudioThreshold)
	}
	if !th.Text {
		fmt.Fprintf(&b, "\n- Answer content scored %.0f (needs %.0f): address the question directly and cover the expected key points.", ind.Text, TextThreshold)
	}
	if !th.Overall {
		fmt.Fprintf(&b, "\n- Overall score %.2f is below the passing mark of %.0f.", w, OverallThreshold)
	}
	return b.String()
}
