// Package analyzer talks to the three remote scoring services (facial, audio, text).
//
// Calls never retry and never panic: every error returned by this package is an
// *Failure describing which service failed and how. Retrying is the caller's call.
package analyzer

import (
	"context"
	"io"

	"github.com/yoockh/interviewx/internal/models"
)

type Service string

const (
	ServiceFacial Service = "facial"
	ServiceAudio  Service = "audio"
	ServiceText   Service = "text"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaFile is an uploaded recording handed to a media analyzer.
type MediaFile struct {
	Filename string
	Content  io.Reader
}

// QuestionContext accompanies audio so the analyzer can bias transcription.
type QuestionContext struct {
	QuestionText string
	Language     string // BCP-47, defaults to en-US
}

// Criteria toggles the text analyzer's scoring dimensions.
type Criteria struct {
	Relevance     bool `json:"relevance"`
	Clarity       bool `json:"clarity"`
	Completeness  bool `json:"completeness"`
	Technical     bool `json:"technical"`
	Communication bool `json:"communication"`
}

func DefaultCriteria() Criteria {
	return Criteria{Relevance: true, Clarity: true, Completeness: true, Technical: true, Communication: true}
}

type TextRequest struct {
	AnswerText       string   `json:"answer_text"`
	QuestionText     string   `json:"question_text"`
	ExpectedKeywords []string `json:"expected_keywords"`
	Criteria         Criteria `json:"criteria"`
}

type Provider interface {
	AnalyzeFacial(ctx context.Context, media MediaFile, mediaType MediaType) (*models.FacialResult, error)
	AnalyzeAudio(ctx context.Context, media MediaFile, qc QuestionContext) (*models.AudioResult, error)
	AnalyzeText(ctx context.Context, req TextRequest) (*models.TextResult, error)
	HealthCheck(ctx context.Context) HealthReport
}
