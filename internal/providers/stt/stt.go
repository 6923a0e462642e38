package stt

import "context"

// Provider transcribes a complete recording. Used when the audio analyzer
// cannot supply a transcription for a text-less answer.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
