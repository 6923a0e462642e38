package models

import "time"

type RealtimeKind string

const (
	RealtimeFacial RealtimeKind = "facial"
	RealtimeAudio  RealtimeKind = "audio"
)

// RealtimeEvent is one piece of live feedback emitted during recording.
type RealtimeEvent struct {
	EvaluationID string       `bson:"evaluation_id" json:"evaluation_id"`
	CandidateID  string       `bson:"candidate_id" json:"candidate_id"`
	Kind         RealtimeKind `bson:"kind" json:"kind"`

	FrameNumber     int64   `bson:"frame_number,omitempty" json:"frame_number,omitempty"`
	ConfidenceScore float64 `bson:"confidence_score,omitempty" json:"confidence_score,omitempty"`
	FaceDetected    bool    `bson:"face_detected,omitempty" json:"face_detected,omitempty"`
	LowConfidence   bool    `bson:"low_confidence,omitempty" json:"low_confidence,omitempty"`

	ChunkCount        int     `bson:"chunk_count,omitempty" json:"chunk_count,omitempty"`
	Transcription     string  `bson:"transcription,omitempty" json:"transcription,omitempty"`
	AudioQualityScore float64 `bson:"audio_quality_score,omitempty" json:"audio_quality_score,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"-"` // for TTL index
}

// RealtimeSummary aggregates the live feedback of one evaluation.
type RealtimeSummary struct {
	EvaluationID          string  `json:"evaluationId"`
	FacialSamples         int     `json:"facialSamples"`
	AverageConfidence     float64 `json:"averageConfidence"`
	LowConfidenceWarnings int     `json:"lowConfidenceWarnings"`
	AudioSegments         int     `json:"audioSegments"`
	AverageAudioQuality   float64 `json:"averageAudioQuality"`
	Transcript            string  `json:"transcript"`
}
