// Package realtime runs the live coaching channel: sampled facial feedback and
// incremental audio transcription over a websocket, plus evaluation updates
// fanned out to connected candidates.
package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Client events.
const (
	EventJoinInterview       = "join_interview"
	EventLeaveInterview      = "leave_interview"
	EventStartFacial         = "start_facial_analysis"
	EventFacialFrame         = "facial_analysis_frame"
	EventStopFacial          = "stop_facial_analysis"
	EventStartAudio          = "start_audio_analysis"
	EventAudioChunk          = "audio_chunk"
	EventStopAudio           = "stop_audio_analysis"
	EventGetEvaluationStatus = "get_evaluation_status"
	EventCheckAIServices     = "check_ai_services"
)

// Server events.
const (
	EventConnected         = "connected"
	EventInterviewJoined   = "interview_joined"
	EventFacialFeedback    = "facial_analysis_feedback"
	EventFacialWarning     = "facial_analysis_warning"
	EventAudioTranscript   = "audio_transcription"
	EventEvaluationStatus  = "evaluation_status"
	EventEvaluationUpdated = "evaluation_updated"
	EventAIServicesHealth  = "ai_services_health"
	EventError             = "error"
)

// Message is one inbound socket frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is one outbound socket frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type interviewRef struct {
	InterviewID string `json:"interviewId"`
}

type evaluationRef struct {
	EvaluationID string `json:"evaluationId"`
}

type framePayload struct {
	FrameData string `json:"frameData"`
}

type chunkPayload struct {
	AudioData   string `json:"audioData"`
	IsLastChunk bool   `json:"isLastChunk"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type FacialFeedback struct {
	EvaluationID    string             `json:"evaluationId"`
	ConfidenceScore float64            `json:"confidence_score"`
	FaceDetected    bool               `json:"face_detected"`
	Emotions        map[string]float64 `json:"emotions,omitempty"`
	FrameNumber     int64              `json:"frame_number"`
}

type FacialWarning struct {
	EvaluationID    string  `json:"evaluationId"`
	Type            string  `json:"type"`
	Message         string  `json:"message"`
	ConfidenceScore float64 `json:"confidence_score"`
	FrameNumber     int64   `json:"frame_number"`
}

type AudioTranscription struct {
	EvaluationID            string  `json:"evaluationId"`
	Transcription           string  `json:"transcription"`
	CumulativeTranscription string  `json:"cumulative_transcription"`
	AudioQualityScore       float64 `json:"audio_quality_score"`
	ChunkCount              int     `json:"chunk_count"`
	IsFinal                 bool    `json:"is_final"`
}

var errEmptyPayload = errors.New("empty media payload")

// decodeMedia accepts raw base64 or a data URL.
func decodeMedia(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	if s == "" {
		return nil, errEmptyPayload
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyPayload
	}
	return b, nil
}
