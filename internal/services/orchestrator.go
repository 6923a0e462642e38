package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/cache"
	"github.com/yoockh/interviewx/internal/events"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
	"github.com/yoockh/interviewx/internal/providers/stt"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interviewx/internal/repositories/postgres"
	"github.com/yoockh/interviewx/internal/scoring"
	"github.com/yoockh/interviewx/internal/storage"
	"github.com/yoockh/interviewx/internal/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	DefaultOrchestrationLiveness = 10 * time.Minute

	maxFallbackAudioBytes = 50 << 20
)

// Orchestrator runs the analyzers of one submitted evaluation and records the
// composite result.
type Orchestrator interface {
	Process(ctx context.Context, evaluationID string) error
}

type OrchestratorConfig struct {
	// Liveness is how long a lease protects a running orchestration.
	Liveness time.Duration
	// TranscribeAudioAnswers feeds the audio transcription to the text
	// analyzer when no answer text was typed.
	TranscribeAudioAnswers bool
	Language               string
}

type OrchestratorDeps struct {
	Evaluations mongorepo.EvaluationRepository
	Progress    ProgressService
	Analyzer    analyzer.Provider
	Media       storage.MediaStore
	Calls       pgrepo.AnalyzerCallRepo
	Events      events.Publisher
	Cache       cache.Cache

	// optional
	STT      stt.Provider
	Observer OrchestrationObserver
	Logger   *logrus.Logger
}

type orchestrator struct {
	OrchestratorDeps
	cfg OrchestratorConfig
	now func() time.Time
}

func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) Orchestrator {
	if cfg.Liveness <= 0 {
		cfg.Liveness = DefaultOrchestrationLiveness
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if deps.Calls == nil {
		deps.Calls = pgrepo.NopAnalyzerCallRepo{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &orchestrator{
		OrchestratorDeps: deps,
		cfg:              cfg,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (o *orchestrator) Process(ctx context.Context, evaluationID string) error {
	const op = "Orchestrator.Process"

	log := o.Logger.WithField("evaluation_id", evaluationID)

	ev, err := o.Evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return repoErr(op, "evaluation", err)
	}
	switch ev.Status {
	case models.EvaluationCompleted:
		o.Observer.ObserveOrchestration("skipped")
		return nil
	case models.EvaluationProcessing:
	default:
		return utils.E(utils.CodeInvalidState, op, fmt.Sprintf("evaluation is %s", ev.Status), nil)
	}

	// The lease is the lock: only a missing or expired lease can be taken.
	now := o.now()
	token := uuid.NewString()
	claimed, err := o.Evaluations.FindAndUpdate(ctx, ev.ID,
		models.EvaluationProcessing, models.EvaluationProcessing,
		models.TransitionGuard{StaleBefore: now.Add(-o.cfg.Liveness)},
		models.EvaluationPatch{ProcessingStartedAt: &now, ProcessingToken: &token},
	)
	if errors.Is(err, utils.ErrStateMismatch) {
		log.Debug("orchestration already running elsewhere")
		o.Observer.ObserveOrchestration("skipped")
		return nil
	}
	if err != nil {
		return repoErr(op, "evaluation", err)
	}

	done, err := o.run(ctx, claimed, token)
	if errors.Is(err, utils.ErrStateMismatch) {
		// lease expired and another worker took over
		log.Warn("lost orchestration lease before completion")
		o.Observer.ObserveOrchestration("skipped")
		return nil
	}
	if err != nil {
		o.fail(ctx, claimed, token, err)
		return err
	}

	log.WithFields(logrus.Fields{
		"interview_id":  done.InterviewID,
		"overall_score": deref(done.OverallScore),
		"passed":        done.Passed != nil && *done.Passed,
		"analysis_errs": len(done.AnalysisErrors),
	}).Info("evaluation completed")
	o.Observer.ObserveOrchestration("completed")
	o.afterTerminal(ctx, done)
	return nil
}

func (o *orchestrator) run(ctx context.Context, ev *models.Evaluation, token string) (out *models.Evaluation, err error) {
	const op = "Orchestrator.Process"

	defer func() {
		if r := recover(); r != nil {
			err = crashed(op, r)
		}
	}()

	var (
		facial *models.FacialAnalysis
		audio  *models.AudioAnalysis
		text   *models.TextAnalysis
	)
	answer := strings.TrimSpace(ev.AnswerText)

	// phase 1: independent analyses, one failure never cancels the others
	var g errgroup.Group
	if ev.VideoPath != "" {
		g.Go(contained(op, func() (err error) {
			facial, err = o.analyzeFacial(ctx, ev)
			return err
		}))
	}
	if ev.AudioPath != "" {
		g.Go(contained(op, func() (err error) {
			audio, err = o.analyzeAudio(ctx, ev)
			return err
		}))
	}
	if answer != "" {
		g.Go(contained(op, func() error {
			text = o.analyzeText(ctx, ev, answer, 1)
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// phase 2: text analysis of the spoken answer
	if answer == "" && ev.AudioPath != "" && o.cfg.TranscribeAudioAnswers {
		transcript := ""
		if audio != nil && !audio.Failed {
			transcript = strings.TrimSpace(audio.TranscribedText)
		} else if o.STT != nil {
			transcript = o.fallbackTranscript(ctx, ev)
		}
		if transcript != "" {
			answer = transcript
			text = o.analyzeText(ctx, ev, answer, 2)
		}
	}

	comp := scoring.Compose(scoring.Inputs{Facial: facial, Audio: audio, Text: text})

	completedAt := o.now()
	since := ev.ProcessingStartedAt
	if ev.SubmittedAt != nil {
		since = ev.SubmittedAt
	}
	var elapsed int64
	if since != nil {
		elapsed = completedAt.Sub(*since).Milliseconds()
	}

	patch := models.EvaluationPatch{
		FacialAnalysis:   facial,
		AudioAnalysis:    audio,
		TextAnalysis:     text,
		OverallScore:     &comp.OverallScore,
		IndividualScores: &comp.Individual,
		ThresholdsMet:    &comp.ThresholdsMet,
		Passed:           &comp.Passed,
		Grade:            &comp.Grade,
		Feedback:         &comp.Feedback,
		AnalysisErrors:   analysisErrors(facial, audio, text),
		CompletedAt:      &completedAt,
		ProcessingTimeMS: &elapsed,
		ClearLease:       true,
	}
	if answer != ev.AnswerText {
		patch.AnswerText = &answer
	}

	out, err = o.Evaluations.FindAndUpdate(ctx, ev.ID,
		models.EvaluationProcessing, models.EvaluationCompleted,
		models.TransitionGuard{Token: token}, patch,
	)
	if errors.Is(err, utils.ErrStateMismatch) {
		return nil, err
	}
	if err != nil {
		return nil, utils.E(utils.CodePersistenceFailure, op, "failed to save evaluation results", err)
	}
	return out, nil
}

func (o *orchestrator) analyzeFacial(ctx context.Context, ev *models.Evaluation) (*models.FacialAnalysis, error) {
	rc, err := o.Media.Open(ctx, ev.VideoPath)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, "Orchestrator.Process", "failed to open video", err)
	}
	defer rc.Close()

	start := time.Now()
	res, err := o.Analyzer.AnalyzeFacial(ctx, analyzer.MediaFile{Filename: ev.VideoPath, Content: rc}, analyzer.MediaVideo)
	if err == nil && res == nil {
		err = emptyResult(analyzer.ServiceFacial)
	}
	o.record(ctx, ev.ID, string(analyzer.ServiceFacial), 1, time.Since(start), res, err)
	if err != nil {
		return &models.FacialAnalysis{PartialFailure: partialFailure(analyzer.ServiceFacial, err)}, nil
	}
	return &models.FacialAnalysis{FacialResult: *res}, nil
}

func (o *orchestrator) analyzeAudio(ctx context.Context, ev *models.Evaluation) (*models.AudioAnalysis, error) {
	rc, err := o.Media.Open(ctx, ev.AudioPath)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, "Orchestrator.Process", "failed to open audio", err)
	}
	defer rc.Close()

	start := time.Now()
	res, err := o.Analyzer.AnalyzeAudio(ctx,
		analyzer.MediaFile{Filename: ev.AudioPath, Content: rc},
		analyzer.QuestionContext{QuestionText: ev.QuestionText, Language: o.cfg.Language},
	)
	if err == nil && res == nil {
		err = emptyResult(analyzer.ServiceAudio)
	}
	o.record(ctx, ev.ID, string(analyzer.ServiceAudio), 1, time.Since(start), res, err)
	if err != nil {
		return &models.AudioAnalysis{PartialFailure: partialFailure(analyzer.ServiceAudio, err)}, nil
	}
	return &models.AudioAnalysis{AudioResult: *res}, nil
}

func (o *orchestrator) analyzeText(ctx context.Context, ev *models.Evaluation, answer string, phase int) *models.TextAnalysis {
	start := time.Now()
	res, err := o.Analyzer.AnalyzeText(ctx, analyzer.TextRequest{
		AnswerText:       answer,
		QuestionText:     ev.QuestionText,
		ExpectedKeywords: ev.ExpectedKeywords,
		Criteria:         analyzer.DefaultCriteria(),
	})
	if err == nil && res == nil {
		err = emptyResult(analyzer.ServiceText)
	}
	o.record(ctx, ev.ID, string(analyzer.ServiceText), phase, time.Since(start), res, err)
	if err != nil {
		return &models.TextAnalysis{PartialFailure: partialFailure(analyzer.ServiceText, err)}
	}
	return &models.TextAnalysis{TextResult: *res}
}

// fallbackTranscript transcribes the recording with the speech provider when
// the audio analyzer produced nothing usable. Failures only cost the text score.
func (o *orchestrator) fallbackTranscript(ctx context.Context, ev *models.Evaluation) string {
	log := o.Logger.WithField("evaluation_id", ev.ID)

	rc, err := o.Media.Open(ctx, ev.AudioPath)
	if err != nil {
		log.WithError(err).Warn("fallback transcription: open audio failed")
		return ""
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxFallbackAudioBytes))
	if err != nil {
		log.WithError(err).Warn("fallback transcription: read audio failed")
		return ""
	}

	start := time.Now()
	text, conf, err := o.STT.Transcribe(ctx, data, o.cfg.Language)
	o.record(ctx, ev.ID, "stt", 2, time.Since(start), map[string]any{"transcript": text, "confidence": conf}, err)
	if err != nil {
		log.WithError(err).Warn("fallback transcription failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// fail moves the evaluation to failed while this run still holds the lease.
func (o *orchestrator) fail(ctx context.Context, ev *models.Evaluation, token string, cause error) {
	log := o.Logger.WithFields(logrus.Fields{
		"evaluation_id": ev.ID,
		"interview_id":  ev.InterviewID,
	})
	log.WithError(cause).Error("evaluation orchestration failed")
	o.Observer.ObserveOrchestration("failed")

	msg := "evaluation processing failed"
	var ae *utils.AppError
	if errors.As(cause, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	failed, err := o.Evaluations.FindAndUpdate(ctx, ev.ID,
		models.EvaluationProcessing, models.EvaluationFailed,
		models.TransitionGuard{Token: token},
		models.EvaluationPatch{Error: &msg, ClearLease: true},
	)
	if err != nil {
		// the lease expires and the sweeper picks the evaluation up again
		log.WithError(err).Error("failed to mark evaluation failed")
		return
	}
	o.afterTerminal(ctx, failed)
}

func (o *orchestrator) afterTerminal(ctx context.Context, ev *models.Evaluation) {
	log := o.Logger.WithFields(logrus.Fields{
		"evaluation_id": ev.ID,
		"interview_id":  ev.InterviewID,
	})
	if ev.Status == models.EvaluationCompleted {
		if _, err := o.Progress.Recompute(ctx, ev.InterviewID); err != nil {
			log.WithError(err).Error("interview progress recompute failed")
		}
	}
	if err := o.Cache.Del(ctx, StatusCacheKey(ev.ID)); err != nil {
		log.WithError(err).Warn("status cache invalidation failed")
	}
	if err := o.Events.PublishEvaluationUpdated(ctx, events.NewEvaluationUpdated(ev)); err != nil {
		log.WithError(err).Warn("publish evaluation_updated failed")
	}
}

func (o *orchestrator) record(ctx context.Context, evaluationID, service string, phase int, d time.Duration, result any, callErr error) {
	call := &models.AnalyzerCall{
		EvaluationID: evaluationID,
		Service:      service,
		Phase:        phase,
		OK:           callErr == nil,
		DurationMS:   d.Milliseconds(),
	}
	if callErr != nil {
		f := analyzer.AsFailure(analyzer.Service(service), callErr)
		call.ErrorKind = string(f.Kind)
		call.ErrorMessage = f.Message
	} else {
		switch r := result.(type) {
		case *models.FacialResult:
			call.Score = r.ConfidenceScore
		case *models.AudioResult:
			call.Score = r.AudioQualityScore
		case *models.TextResult:
			call.Score = r.OverallScore
			call.KeywordMatches = r.KeywordMatches
		}
		if b, err := json.Marshal(result); err == nil {
			call.Result = datatypes.JSON(b)
		}
	}
	if err := o.Calls.Insert(ctx, call); err != nil {
		o.Logger.WithError(err).WithField("evaluation_id", evaluationID).Warn("analyzer call ledger write failed")
	}
	if callErr != nil {
		o.Logger.WithError(callErr).WithFields(logrus.Fields{
			"evaluation_id": evaluationID,
			"service":       service,
		}).Warn("analyzer call failed")
	}
}

// contained runs fn on an errgroup goroutine, where a panic would otherwise
// take the whole process down with it.
func contained(op string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = crashed(op, r)
			}
		}()
		return fn()
	}
}

func crashed(op string, r any) error {
	return utils.E(utils.CodeInternal, op, "orchestration crashed", fmt.Errorf("panic: %v", r))
}

func emptyResult(svc analyzer.Service) error {
	return &analyzer.Failure{Service: svc, Kind: analyzer.KindAnalyzerFailure, Message: "empty analyzer response"}
}

func partialFailure(svc analyzer.Service, err error) models.PartialFailure {
	f := analyzer.AsFailure(svc, err)
	return models.PartialFailure{Failed: true, ErrorKind: string(f.Kind), Error: f.Message}
}

// analysisErrors lists failed partials as "<service>: <message>", in
// facial, audio, text order.
func analysisErrors(facial *models.FacialAnalysis, audio *models.AudioAnalysis, text *models.TextAnalysis) []string {
	out := []string{}
	if facial != nil && facial.Failed {
		out = append(out, string(analyzer.ServiceFacial)+": "+facial.Error)
	}
	if audio != nil && audio.Failed {
		out = append(out, string(analyzer.ServiceAudio)+": "+audio.Error)
	}
	if text != nil && text.Failed {
		out = append(out, string(analyzer.ServiceText)+": "+text.Error)
	}
	return out
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
