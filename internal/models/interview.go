package models

import "time"

type InterviewStatus string

const (
	InterviewPending    InterviewStatus = "pending"
	InterviewInProgress InterviewStatus = "in-progress"
	InterviewCompleted  InterviewStatus = "completed"
	InterviewCancelled  InterviewStatus = "cancelled"
)

type InterviewType string

const (
	InterviewTechnical    InterviewType = "technical"
	InterviewBehavioral   InterviewType = "behavioral"
	InterviewCoding       InterviewType = "coding"
	InterviewSystemDesign InterviewType = "system-design"
)

func (t InterviewType) Valid() bool {
	switch t {
	case InterviewTechnical, InterviewBehavioral, InterviewCoding, InterviewSystemDesign:
		return true
	}
	return false
}

// Modality is an answer medium a question accepts.
type Modality string

const (
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

const (
	MinInterviewDuration = 5   // minutes
	MaxInterviewDuration = 120 // minutes
)

type Interview struct {
	ID     string `bson:"_id" json:"id"`
	UserID string `bson:"user_id" json:"user_id"`

	Title    string          `bson:"title" json:"title"`
	Type     InterviewType   `bson:"type" json:"type"`
	Duration int             `bson:"duration" json:"duration"` // minutes
	Status   InterviewStatus `bson:"status" json:"status"`

	Questions []Question `bson:"questions" json:"questions"`

	// maintained by the progress aggregator only
	ProgressPct        int     `bson:"progress_pct" json:"progress_pct"`
	OverallScore       float64 `bson:"overall_score" json:"overall_score"`
	CompletedQuestions int     `bson:"completed_questions" json:"completed_questions"`
	PassedQuestions    int     `bson:"passed_questions" json:"passed_questions"`

	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

type Question struct {
	ID                string     `bson:"id" json:"id"`
	Text              string     `bson:"text" json:"text"`
	TimeLimit         int        `bson:"time_limit" json:"time_limit"` // seconds
	AllowedModalities []Modality `bson:"allowed_modalities,omitempty" json:"allowed_modalities,omitempty"`
	ExpectedKeywords  []string   `bson:"expected_keywords,omitempty" json:"expected_keywords,omitempty"`
	Difficulty        string     `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Category          string     `bson:"category,omitempty" json:"category,omitempty"`
}

func (i *Interview) Question(id string) (*Question, bool) {
	for idx := range i.Questions {
		if i.Questions[idx].ID == id {
			return &i.Questions[idx], true
		}
	}
	return nil, false
}

// Allows reports whether m is accepted. An empty list accepts every modality.
func (q *Question) Allows(m Modality) bool {
	if len(q.AllowedModalities) == 0 {
		return true
	}
	for _, a := range q.AllowedModalities {
		if a == m {
			return true
		}
	}
	return false
}

// InterviewProgress is the projection written by the progress aggregator.
type InterviewProgress struct {
	Status             InterviewStatus
	ProgressPct        int
	OverallScore       float64
	CompletedQuestions int
	PassedQuestions    int
	CompletedAt        *time.Time // nil clears the stamp
}
