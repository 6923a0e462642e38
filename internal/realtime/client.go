package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
	"github.com/yoockh/interviewx/internal/utils"
)

// Emitter delivers one server event to a socket. Implementations must be
// safe for concurrent use.
type Emitter interface {
	Emit(event string, data any) error
}

type facialSession struct {
	evaluationID string
	startedAt    time.Time
	frames       int64
}

type audioSession struct {
	evaluationID string
	questionText string
	startedAt    time.Time
	buffer       [][]byte
	chunks       int
	cumulative   string
	// pendingFinal is a last chunk that arrived during a call; it is flushed
	// as soon as that call returns.
	pendingFinal bool
}

// Client is the per-socket state: at most one facial and one audio session,
// and at most one analyzer call in flight per modality.
type Client struct {
	hub    *Hub
	userID string
	out    Emitter
	log    *logrus.Entry

	mu     sync.Mutex
	facial *facialSession
	audio  *audioSession
	rooms  map[string]struct{}

	facialBusy atomic.Bool
	audioBusy  atomic.Bool
}

func newClient(h *Hub, userID string, out Emitter) *Client {
	return &Client{
		hub:    h,
		userID: userID,
		out:    out,
		log:    h.Logger.WithField("user_id", userID),
		rooms:  map[string]struct{}{},
	}
}

func (c *Client) UserID() string { return c.userID }

// Handle processes one inbound message. Calls must not overlap; the socket
// read loop is the only caller.
func (c *Client) Handle(ctx context.Context, msg Message) {
	switch msg.Event {
	case EventJoinInterview:
		var in interviewRef
		if c.decode(msg, &in) {
			c.joinInterview(ctx, in.InterviewID)
		}
	case EventLeaveInterview:
		var in interviewRef
		if c.decode(msg, &in) {
			c.leaveInterview(in.InterviewID)
		}
	case EventStartFacial:
		var in evaluationRef
		if c.decode(msg, &in) {
			c.startFacial(ctx, in.EvaluationID)
		}
	case EventFacialFrame:
		var in framePayload
		if c.decode(msg, &in) {
			c.facialFrame(in)
		}
	case EventStopFacial:
		c.mu.Lock()
		c.facial = nil
		c.mu.Unlock()
	case EventStartAudio:
		var in evaluationRef
		if c.decode(msg, &in) {
			c.startAudio(ctx, in.EvaluationID)
		}
	case EventAudioChunk:
		var in chunkPayload
		if c.decode(msg, &in) {
			c.audioChunk(in)
		}
	case EventStopAudio:
		c.mu.Lock()
		c.audio = nil
		c.mu.Unlock()
	case EventGetEvaluationStatus:
		var in evaluationRef
		if c.decode(msg, &in) {
			c.evaluationStatus(ctx, in.EvaluationID)
		}
	case EventCheckAIServices:
		c.emit(EventAIServicesHealth, c.hub.Analyzer.HealthCheck(ctx))
	default:
		c.emitError(utils.CodeInvalidArgument, fmt.Sprintf("unknown event %q", msg.Event))
	}
}

func (c *Client) decode(msg Message, dst any) bool {
	if len(msg.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		c.emitError(utils.CodeInvalidArgument, "invalid "+msg.Event+" payload")
		return false
	}
	return true
}

func (c *Client) joinInterview(ctx context.Context, interviewID string) {
	iv, err := c.hub.Sessions.JoinInterview(ctx, c.userID, interviewID)
	if err != nil {
		c.emitAppError(err)
		return
	}
	c.mu.Lock()
	c.rooms[iv.ID] = struct{}{}
	c.mu.Unlock()
	c.hub.join(iv.ID, c)

	c.emit(EventInterviewJoined, map[string]any{
		"interviewId": iv.ID,
		"title":       iv.Title,
		"status":      iv.Status,
		"progress":    iv.ProgressPct,
	})
}

func (c *Client) leaveInterview(interviewID string) {
	c.mu.Lock()
	delete(c.rooms, interviewID)
	c.mu.Unlock()
	c.hub.leave(interviewID, c)
}

func (c *Client) joined() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.rooms))
	for r := range c.rooms {
		out[r] = struct{}{}
	}
	return out
}

func (c *Client) startFacial(ctx context.Context, evaluationID string) {
	ev, err := c.hub.Sessions.OpenSession(ctx, c.userID, evaluationID)
	if err != nil {
		c.emitAppError(err)
		return
	}
	c.mu.Lock()
	c.facial = &facialSession{evaluationID: ev.ID, startedAt: time.Now()}
	c.mu.Unlock()
	c.log.WithField("evaluation_id", ev.ID).Debug("facial session started")
}

func (c *Client) startAudio(ctx context.Context, evaluationID string) {
	ev, err := c.hub.Sessions.OpenSession(ctx, c.userID, evaluationID)
	if err != nil {
		c.emitAppError(err)
		return
	}
	c.mu.Lock()
	c.audio = &audioSession{evaluationID: ev.ID, questionText: ev.QuestionText, startedAt: time.Now(), cumulative: ev.LiveTranscript}
	c.mu.Unlock()
	c.log.WithField("evaluation_id", ev.ID).Debug("audio session started")
}

func (c *Client) facialFrame(in framePayload) {
	const kind = "facial"

	c.mu.Lock()
	s := c.facial
	if s == nil {
		c.mu.Unlock()
		c.emitError(utils.CodeInvalidState, "no active facial analysis session")
		return
	}
	s.frames++
	frame := s.frames
	c.mu.Unlock()

	if frame%c.hub.cfg.SampleEvery != 0 {
		c.hub.Observer.ObserveRealtimeInput(kind, "skipped")
		return
	}
	data, err := decodeMedia(in.FrameData)
	if err != nil {
		c.log.WithError(err).WithField("frame_number", frame).Debug("undecodable frame")
		c.hub.Observer.ObserveRealtimeInput(kind, "error")
		return
	}
	if !c.facialBusy.CompareAndSwap(false, true) {
		c.hub.Observer.ObserveRealtimeInput(kind, "dropped")
		return
	}
	go c.analyzeFrame(s, frame, data)
}

func (c *Client) analyzeFrame(s *facialSession, frame int64, data []byte) {
	const kind = "facial"
	defer c.facialBusy.Store(false)

	log := c.log.WithFields(logrus.Fields{"evaluation_id": s.evaluationID, "frame_number": frame})
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.cfg.CallTimeout)
	defer cancel()

	var res *models.FacialResult
	err := c.withScratchFile("frame-*.jpg", data, func(f *os.File) error {
		var aerr error
		res, aerr = c.hub.Analyzer.AnalyzeFacial(ctx, analyzer.MediaFile{Filename: filepath.Base(f.Name()), Content: f}, analyzer.MediaImage)
		return aerr
	})
	if err != nil {
		log.WithError(err).Warn("realtime facial analysis failed")
		c.hub.Observer.ObserveRealtimeInput(kind, "error")
		return
	}
	if !c.facialCurrent(s) {
		c.hub.Observer.ObserveRealtimeInput(kind, "stale")
		return
	}

	c.emit(EventFacialFeedback, FacialFeedback{
		EvaluationID:    s.evaluationID,
		ConfidenceScore: res.ConfidenceScore,
		FaceDetected:    res.FaceDetected,
		Emotions:        res.Emotions,
		FrameNumber:     frame,
	})
	low := res.ConfidenceScore < c.hub.cfg.LowConfidence
	if low {
		c.emit(EventFacialWarning, FacialWarning{
			EvaluationID:    s.evaluationID,
			Type:            "low_confidence",
			Message:         "Try to keep your face centered and maintain eye contact",
			ConfidenceScore: res.ConfidenceScore,
			FrameNumber:     frame,
		})
	}
	c.hub.Observer.ObserveRealtimeInput(kind, "processed")

	c.record(&models.RealtimeEvent{
		EvaluationID:     s.evaluationID,
		CandidateID:      c.userID,
		Kind:             models.RealtimeFacial,
		FrameNumber:      frame,
		ConfidenceScore:  res.ConfidenceScore,
		FaceDetected:     res.FaceDetected,
		LowConfidence:    low,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	})
}

func (c *Client) audioChunk(in chunkPayload) {
	const kind = "audio"

	c.mu.Lock()
	s := c.audio
	c.mu.Unlock()
	if s == nil {
		c.emitError(utils.CodeInvalidState, "no active audio analysis session")
		return
	}
	if c.audioBusy.Load() && !in.IsLastChunk {
		c.hub.Observer.ObserveRealtimeInput(kind, "dropped")
		return
	}
	data, err := decodeMedia(in.AudioData)
	if err != nil {
		c.log.WithError(err).Debug("undecodable audio chunk")
		c.hub.Observer.ObserveRealtimeInput(kind, "error")
		return
	}

	c.mu.Lock()
	if c.audio != s {
		c.mu.Unlock()
		return
	}
	// busy only clears under mu, see finishAudio
	if c.audioBusy.Load() {
		result := "dropped"
		if in.IsLastChunk {
			s.buffer = append(s.buffer, data)
			s.chunks++
			s.pendingFinal = true
			result = "deferred"
		}
		c.mu.Unlock()
		c.hub.Observer.ObserveRealtimeInput(kind, result)
		return
	}
	s.buffer = append(s.buffer, data)
	s.chunks++
	flush := len(s.buffer) >= c.hub.cfg.AudioFlushChunks || in.IsLastChunk
	var batch [][]byte
	if flush {
		batch, s.buffer = s.buffer, nil
	}
	c.mu.Unlock()

	if !flush {
		c.hub.Observer.ObserveRealtimeInput(kind, "buffered")
		return
	}
	// only the read loop flips the flag on, so this cannot lose
	c.audioBusy.Store(true)
	go c.analyzeAudio(s, batch, in.IsLastChunk)
}

func (c *Client) analyzeAudio(s *audioSession, batch [][]byte, final bool) {
	const kind = "audio"
	defer c.finishAudio(s)

	log := c.log.WithField("evaluation_id", s.evaluationID)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.cfg.CallTimeout)
	defer cancel()

	var res *models.AudioResult
	err := c.withScratchFile("audio-*.wav", bytes.Join(batch, nil), func(f *os.File) error {
		var aerr error
		res, aerr = c.hub.Analyzer.AnalyzeAudio(ctx,
			analyzer.MediaFile{Filename: filepath.Base(f.Name()), Content: f},
			analyzer.QuestionContext{QuestionText: s.questionText, Language: c.hub.cfg.Language},
		)
		return aerr
	})
	if err != nil {
		log.WithError(err).Warn("realtime audio analysis failed")
		c.hub.Observer.ObserveRealtimeInput(kind, "error")
		return
	}

	c.mu.Lock()
	if c.audio != s {
		c.mu.Unlock()
		c.hub.Observer.ObserveRealtimeInput(kind, "stale")
		return
	}
	text := strings.TrimSpace(res.TranscribedText)
	if text != "" {
		s.cumulative = strings.TrimSpace(s.cumulative + " " + text)
	}
	cumulative, chunks := s.cumulative, s.chunks
	c.mu.Unlock()

	c.emit(EventAudioTranscript, AudioTranscription{
		EvaluationID:            s.evaluationID,
		Transcription:           text,
		CumulativeTranscription: cumulative,
		AudioQualityScore:       res.AudioQualityScore,
		ChunkCount:              chunks,
		IsFinal:                 final,
	})
	c.hub.Observer.ObserveRealtimeInput(kind, "processed")

	if text != "" {
		if err := c.hub.Sessions.SaveTranscript(ctx, s.evaluationID, cumulative); err != nil {
			log.WithError(err).Warn("failed to save live transcript")
		}
	}
	c.record(&models.RealtimeEvent{
		EvaluationID:      s.evaluationID,
		CandidateID:       c.userID,
		Kind:              models.RealtimeAudio,
		ChunkCount:        len(batch),
		Transcription:     text,
		AudioQualityScore: res.AudioQualityScore,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	})
}

// finishAudio frees the audio slot, unless a last chunk is waiting: then the
// slot is handed straight to the final flush.
func (c *Client) finishAudio(s *audioSession) {
	c.mu.Lock()
	if c.audio != s || !s.pendingFinal {
		c.audioBusy.Store(false)
		c.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer, s.pendingFinal = nil, false
	c.mu.Unlock()
	go c.analyzeAudio(s, batch, true)
}

func (c *Client) evaluationStatus(ctx context.Context, evaluationID string) {
	view, err := c.hub.Status.Status(ctx, c.userID, evaluationID)
	if err != nil {
		c.emitAppError(err)
		return
	}
	c.emit(EventEvaluationStatus, view)
}

// withScratchFile writes data to a temp file, hands it to fn opened for
// reading and removes it afterwards.
func (c *Client) withScratchFile(pattern string, data []byte, fn func(*os.File) error) error {
	f, err := os.CreateTemp(c.hub.cfg.ScratchDir, pattern)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		if rerr := os.Remove(f.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			c.log.WithError(rerr).WithField("path", f.Name()).Debug("scratch file not removed")
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return fn(f)
}

func (c *Client) record(e *models.RealtimeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.hub.Sessions.RecordEvent(ctx, e); err != nil {
		c.log.WithError(err).WithField("evaluation_id", e.EvaluationID).Debug("realtime event not recorded")
	}
}

func (c *Client) facialCurrent(s *facialSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facial == s
}

// endSessionsFor destroys sessions bound to evaluationID.
func (c *Client) endSessionsFor(evaluationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.facial != nil && c.facial.evaluationID == evaluationID {
		c.facial = nil
	}
	if c.audio != nil && c.audio.evaluationID == evaluationID {
		c.audio = nil
	}
}

func (c *Client) closeSessions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facial, c.audio = nil, nil
}

func (c *Client) emit(event string, data any) {
	if err := c.out.Emit(event, data); err != nil {
		c.log.WithError(err).WithField("event", event).Debug("emit failed")
	}
}

func (c *Client) emitError(code utils.Code, message string) {
	c.emit(EventError, ErrorPayload{Code: string(code), Message: message})
}

func (c *Client) emitAppError(err error) {
	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.emitError(ae.Code, ae.Message)
		return
	}
	c.log.WithError(err).Error("realtime request failed")
	c.emitError(utils.CodeInternal, "internal error")
}
