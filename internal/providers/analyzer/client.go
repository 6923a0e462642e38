package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/yoockh/interviewx/internal/models"
)

const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// Config captures the analyzer base URLs and deadlines.
type Config struct {
	FacialURL     string
	AudioURL      string
	TextURL       string
	CallTimeout   time.Duration
	HealthTimeout time.Duration
}

// Observer is notified after every analyze call (metrics hook).
type Observer interface {
	ObserveAnalyzerCall(service string, d time.Duration, err error)
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	observer   Observer
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	cfg.FacialURL = strings.TrimRight(strings.TrimSpace(cfg.FacialURL), "/")
	cfg.AudioURL = strings.TrimRight(strings.TrimSpace(cfg.AudioURL), "/")
	cfg.TextURL = strings.TrimRight(strings.TrimSpace(cfg.TextURL), "/")

	c := &Client{
		cfg: cfg,
		// deadlines come from per-call contexts
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) baseURL(svc Service) string {
	switch svc {
	case ServiceFacial:
		return c.cfg.FacialURL
	case ServiceAudio:
		return c.cfg.AudioURL
	default:
		return c.cfg.TextURL
	}
}

// facialWire accepts both the documented contract and the 0..1
// overall_confidence field some analyzer builds still return.
type facialWire struct {
	ConfidenceScore   *float64           `json:"confidence_score"`
	OverallConfidence *float64           `json:"overall_confidence"`
	FaceDetected      *bool              `json:"face_detected"`
	ValidDetections   int                `json:"valid_detections"`
	Emotions          map[string]float64 `json:"emotions"`
	FaceLandmarks     any                `json:"face_landmarks"`
}

func (c *Client) AnalyzeFacial(ctx context.Context, media MediaFile, mediaType MediaType) (*models.FacialResult, error) {
	if mediaType == "" {
		mediaType = MediaVideo
	}
	var w facialWire
	err := c.observe(ServiceFacial, func() error {
		return c.postMultipart(ctx, ServiceFacial, media, map[string]string{"media_type": string(mediaType)}, &w)
	})
	if err != nil {
		return nil, err
	}

	out := &models.FacialResult{Emotions: w.Emotions, FaceLandmarks: w.FaceLandmarks}
	switch {
	case w.ConfidenceScore != nil:
		out.ConfidenceScore = *w.ConfidenceScore
	case w.OverallConfidence != nil:
		out.ConfidenceScore = *w.OverallConfidence * 100
	default:
		return nil, &Failure{Service: ServiceFacial, Kind: KindAnalyzerFailure, Message: "response missing confidence_score"}
	}
	if w.FaceDetected != nil {
		out.FaceDetected = *w.FaceDetected
	} else {
		out.FaceDetected = w.ValidDetections > 0
	}
	return out, nil
}

type audioWire struct {
	models.AudioResult
	Transcription string `json:"transcription"`
}

func (c *Client) AnalyzeAudio(ctx context.Context, media MediaFile, qc QuestionContext) (*models.AudioResult, error) {
	lang := qc.Language
	if lang == "" {
		lang = "en-US"
	}
	var w audioWire
	err := c.observe(ServiceAudio, func() error {
		return c.postMultipart(ctx, ServiceAudio, media, map[string]string{
			"question_context": qc.QuestionText,
			"language":         lang,
		}, &w)
	})
	if err != nil {
		return nil, err
	}
	out := w.AudioResult
	if out.TranscribedText == "" {
		out.TranscribedText = w.Transcription
	}
	return &out, nil
}

func (c *Client) AnalyzeText(ctx context.Context, req TextRequest) (*models.TextResult, error) {
	if strings.TrimSpace(req.AnswerText) == "" {
		return nil, &Failure{Service: ServiceText, Kind: KindInvalidInput, Message: "answer text is empty"}
	}
	if req.ExpectedKeywords == nil {
		req.ExpectedKeywords = []string{}
	}
	var out models.TextResult
	err := c.observe(ServiceText, func() error {
		return c.postJSON(ctx, ServiceText, req, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) observe(svc Service, fn func() error) error {
	start := time.Now()
	err := fn()
	if c.observer != nil {
		c.observer.ObserveAnalyzerCall(string(svc), time.Since(start), err)
	}
	return err
}

func (c *Client) postMultipart(ctx context.Context, svc Service, media MediaFile, fields map[string]string, dst any) error {
	if media.Content == nil {
		return &Failure{Service: svc, Kind: KindInvalidInput, Message: "no media provided"}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return &Failure{Service: svc, Kind: KindInvalidInput, Message: "failed to build request", Err: err}
		}
	}
	name := filepath.Base(media.Filename)
	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return &Failure{Service: svc, Kind: KindInvalidInput, Message: "failed to build request", Err: err}
	}
	if _, err := io.Copy(part, media.Content); err != nil {
		return &Failure{Service: svc, Kind: KindInvalidInput, Message: "failed to read media", Err: err}
	}
	if err := mw.Close(); err != nil {
		return &Failure{Service: svc, Kind: KindInvalidInput, Message: "failed to build request", Err: err}
	}

	return c.do(ctx, svc, mw.FormDataContentType(), &body, dst)
}

func (c *Client) postJSON(ctx context.Context, svc Service, payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return &Failure{Service: svc, Kind: KindInvalidInput, Message: "failed to encode request", Err: err}
	}
	return c.do(ctx, svc, "application/json", bytes.NewReader(b), dst)
}

// envelope is the {success, data, error, message} wrapper used by the
// analyzer services; bare payloads are accepted as well.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) reason() string {
	switch {
	case e.Message != "" && e.Error != "":
		return e.Error + ": " + e.Message
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}

func (c *Client) do(ctx context.Context, svc Service, contentType string, body io.Reader, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(svc)+"/analyze", body)
	if err != nil {
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "invalid analyzer url", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(svc, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(svc, err)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("analyzer returned status %d", resp.StatusCode)
		if r := env.reason(); r != "" {
			msg += ": " + r
		} else if len(raw) > 0 {
			msg += ": " + strings.TrimSpace(string(truncate(raw, 256)))
		}
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: msg}
	}
	if env.Success != nil && !*env.Success {
		msg := env.reason()
		if msg == "" {
			msg = "analysis unsuccessful"
		}
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: msg}
	}

	payload := raw
	if len(env.Data) > 0 && string(env.Data) != "null" {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "invalid analyzer response", Err: err}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
