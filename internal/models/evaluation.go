package models

import "time"

type EvaluationStatus string

const (
	EvaluationInProgress EvaluationStatus = "in_progress"
	EvaluationProcessing EvaluationStatus = "processing"
	EvaluationCompleted  EvaluationStatus = "completed"
	EvaluationFailed     EvaluationStatus = "failed"
)

// Evaluation is one candidate answer to one interview question.
// Unique per (interview_id, question_id, candidate_id).
type Evaluation struct {
	ID          string           `bson:"_id" json:"id"`
	InterviewID string           `bson:"interview_id" json:"interview_id"`
	QuestionID  string           `bson:"question_id" json:"question_id"`
	CandidateID string           `bson:"candidate_id" json:"candidate_id"`
	Status      EvaluationStatus `bson:"status" json:"status"`

	// inputs; media paths never leave the backend
	VideoPath         string     `bson:"video_path,omitempty" json:"-"`
	AudioPath         string     `bson:"audio_path,omitempty" json:"-"`
	AnswerText        string     `bson:"answer_text,omitempty" json:"answer_text,omitempty"`
	QuestionText      string     `bson:"question_text" json:"question_text"`
	ExpectedKeywords  []string   `bson:"expected_keywords,omitempty" json:"expected_keywords,omitempty"`
	AllowedModalities []Modality `bson:"allowed_modalities,omitempty" json:"allowed_modalities,omitempty"`
	TimeLimit         int        `bson:"time_limit" json:"time_limit"`

	FacialAnalysis *FacialAnalysis `bson:"facial_analysis,omitempty" json:"facial_analysis,omitempty"`
	AudioAnalysis  *AudioAnalysis  `bson:"audio_analysis,omitempty" json:"audio_analysis,omitempty"`
	TextAnalysis   *TextAnalysis   `bson:"text_analysis,omitempty" json:"text_analysis,omitempty"`

	OverallScore     *float64          `bson:"overall_score,omitempty" json:"overall_score,omitempty"`
	IndividualScores *IndividualScores `bson:"individual_scores,omitempty" json:"individual_scores,omitempty"`
	ThresholdsMet    *ThresholdsMet    `bson:"thresholds_met,omitempty" json:"thresholds_met,omitempty"`
	Passed           *bool             `bson:"passed,omitempty" json:"passed,omitempty"`
	Grade            Grade             `bson:"grade,omitempty" json:"grade,omitempty"`
	Feedback         string            `bson:"feedback,omitempty" json:"feedback,omitempty"`
	AnalysisErrors   []string          `bson:"analysis_errors,omitempty" json:"analysis_errors,omitempty"`
	Error            string            `bson:"error,omitempty" json:"error,omitempty"`

	// cumulative transcription captured by the realtime channel
	LiveTranscript string `bson:"live_transcript,omitempty" json:"live_transcript,omitempty"`

	// orchestration lease
	ProcessingStartedAt *time.Time `bson:"processing_started_at,omitempty" json:"-"`
	ProcessingToken     string     `bson:"processing_token,omitempty" json:"-"`
	RetryCount          int        `bson:"retry_count" json:"retry_count"`

	StartedAt        time.Time  `bson:"started_at" json:"started_at"`
	SubmittedAt      *time.Time `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ProcessingTimeMS int64      `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// EvaluationPatch lists the fields a single atomic update may touch.
// Nil pointers are left alone; Clear* flags unset the corresponding fields.
type EvaluationPatch struct {
	VideoPath      *string
	AudioPath      *string
	AnswerText     *string
	LiveTranscript *string

	FacialAnalysis *FacialAnalysis
	AudioAnalysis  *AudioAnalysis
	TextAnalysis   *TextAnalysis

	OverallScore     *float64
	IndividualScores *IndividualScores
	ThresholdsMet    *ThresholdsMet
	Passed           *bool
	Grade            *Grade
	Feedback         *string
	AnalysisErrors   []string
	Error            *string

	SubmittedAt      *time.Time
	CompletedAt      *time.Time
	ProcessingTimeMS *int64

	ProcessingStartedAt *time.Time
	ProcessingToken     *string
	IncRetryCount       bool

	ClearLease   bool // processing_started_at, processing_token
	ClearError   bool
	ClearResults bool // partials, composite, analysis errors, completion stamps
}

// TransitionGuard narrows a status transition further.
type TransitionGuard struct {
	// Token must equal the persisted processing_token.
	Token string
	// StaleBefore requires the lease to be missing or started before this instant.
	StaleBefore time.Time
}

// EvaluationStatusView is the polling contract.
type EvaluationStatusView struct {
	ID           string           `json:"id"`
	Status       EvaluationStatus `json:"status"`
	OverallScore *float64         `json:"overallScore,omitempty"`
	Passed       *bool            `json:"passed,omitempty"`
	Grade        Grade            `json:"grade,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func (e *Evaluation) StatusView() EvaluationStatusView {
	return EvaluationStatusView{
		ID:           e.ID,
		Status:       e.Status,
		OverallScore: e.OverallScore,
		Passed:       e.Passed,
		Grade:        e.Grade,
		CompletedAt:  e.CompletedAt,
		Error:        e.Error,
	}
}

// EvaluationSummary counts evaluations of one interview by state.
type EvaluationSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Passed     int `json:"passed"`
	InProgress int `json:"inProgress"`
	Failed     int `json:"failed"`
}

func SummarizeEvaluations(list []Evaluation) EvaluationSummary {
	s := EvaluationSummary{Total: len(list)}
	for _, e := range list {
		switch e.Status {
		case EvaluationCompleted:
			s.Completed++
		case EvaluationInProgress, EvaluationProcessing:
			s.InProgress++
		case EvaluationFailed:
			s.Failed++
		}
		if e.Passed != nil && *e.Passed {
			s.Passed++
		}
	}
	return s
}
