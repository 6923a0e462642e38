package models

// FacialResult is the facial analyzer contract.
type FacialResult struct {
	ConfidenceScore float64            `bson:"confidence_score" json:"confidence_score"`
	FaceDetected    bool               `bson:"face_detected" json:"face_detected"`
	Emotions        map[string]float64 `bson:"emotions,omitempty" json:"emotions,omitempty"`
	FaceLandmarks   any                `bson:"face_landmarks,omitempty" json:"face_landmarks,omitempty"`
}

// AudioResult is the audio analyzer contract.
type AudioResult struct {
	TranscribedText   string  `bson:"transcribed_text" json:"transcribed_text"`
	AudioQualityScore float64 `bson:"audio_quality_score" json:"audio_quality_score"`
	SpeechClarity     float64 `bson:"speech_clarity" json:"speech_clarity"`
	SpeakingPace      string  `bson:"speaking_pace" json:"speaking_pace"` // slow|normal|fast
	VolumeLevel       float64 `bson:"volume_level" json:"volume_level"`
	DurationSeconds   float64 `bson:"duration_seconds" json:"duration_seconds"`
}

// TextResult is the text analyzer contract.
type TextResult struct {
	OverallScore       float64  `bson:"overall_score" json:"overall_score"`
	RelevanceScore     float64  `bson:"relevance_score" json:"relevance_score"`
	ClarityScore       float64  `bson:"clarity_score" json:"clarity_score"`
	CompletenessScore  float64  `bson:"completeness_score" json:"completeness_score"`
	TechnicalScore     float64  `bson:"technical_score" json:"technical_score"`
	CommunicationScore float64  `bson:"communication_score" json:"communication_score"`
	KeywordMatches     []string `bson:"keyword_matches,omitempty" json:"keyword_matches,omitempty"`
	Feedback           string   `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Suggestions        []string `bson:"suggestions,omitempty" json:"suggestions,omitempty"`
	// label ("positive") or a structured breakdown, depending on the analyzer build
	Sentiment any `bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	WordCount int `bson:"word_count" json:"word_count"`
}

// PartialFailure marks an analysis that was attempted and did not succeed.
type PartialFailure struct {
	Failed    bool   `bson:"failed,omitempty" json:"failed,omitempty"`
	ErrorKind string `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	Error     string `bson:"error,omitempty" json:"error,omitempty"`
}

type FacialAnalysis struct {
	FacialResult   `bson:",inline"`
	PartialFailure `bson:",inline"`
}

type AudioAnalysis struct {
	AudioResult    `bson:",inline"`
	PartialFailure `bson:",inline"`
}

type TextAnalysis struct {
	TextResult     `bson:",inline"`
	PartialFailure `bson:",inline"`
}

type IndividualScores struct {
	Facial float64 `bson:"facial" json:"facial"`
	Audio  float64 `bson:"audio" json:"audio"`
	Text   float64 `bson:"text" json:"text"`
}

type ThresholdsMet struct {
	Facial  bool `bson:"facial" json:"facial"`
	Audio   bool `bson:"audio" json:"audio"`
	Text    bool `bson:"text" json:"text"`
	Overall bool `bson:"overall" json:"overall"`
}

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)
