package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/interviewx/internal/events"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
	"github.com/yoockh/interviewx/internal/utils"
)

// fakeEvaluations mirrors the guarded-update semantics of the Mongo repository.
type fakeEvaluations struct {
	mu   sync.Mutex
	byID map[string]models.Evaluation

	// failFinal makes the next processing→completed transition error out
	failFinal int
}

func newFakeEvaluations(list ...models.Evaluation) *fakeEvaluations {
	f := &fakeEvaluations{byID: map[string]models.Evaluation{}}
	for _, e := range list {
		f.byID[e.ID] = e
	}
	return f
}

func (f *fakeEvaluations) get(id string) models.Evaluation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeEvaluations) Create(_ context.Context, e *models.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.InterviewID == e.InterviewID && x.QuestionID == e.QuestionID && x.CandidateID == e.CandidateID {
			return utils.ErrDuplicate
		}
	}
	f.byID[e.ID] = *e
	return nil
}

func (f *fakeEvaluations) GetByID(_ context.Context, id string) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &e, nil
}

func (f *fakeEvaluations) FindByTuple(_ context.Context, interviewID, questionID, candidateID string) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.InterviewID == interviewID && e.QuestionID == questionID && e.CandidateID == candidateID {
			return &e, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeEvaluations) ListByInterview(_ context.Context, interviewID string) ([]models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Evaluation{}
	for _, e := range f.byID {
		if e.InterviewID == interviewID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEvaluations) ListStaleProcessing(_ context.Context, staleBefore time.Time, _ int64) ([]models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Evaluation
	for _, e := range f.byID {
		if e.Status != models.EvaluationProcessing {
			continue
		}
		if e.ProcessingStartedAt != nil && e.ProcessingStartedAt.Before(staleBefore) {
			out = append(out, e)
		} else if e.ProcessingStartedAt == nil && e.SubmittedAt != nil && e.SubmittedAt.Before(staleBefore) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvaluations) CountByInterviewAndStatus(_ context.Context, interviewID string, status models.EvaluationStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.byID {
		if e.InterviewID == interviewID && e.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeEvaluations) Update(_ context.Context, id string, patch models.EvaluationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	applyPatch(&e, patch)
	f.byID[id] = e
	return nil
}

func (f *fakeEvaluations) FindAndUpdate(_ context.Context, id string, from, to models.EvaluationStatus, guard models.TransitionGuard, patch models.EvaluationPatch) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok || e.Status != from {
		return nil, utils.ErrStateMismatch
	}
	if guard.Token != "" && e.ProcessingToken != guard.Token {
		return nil, utils.ErrStateMismatch
	}
	if !guard.StaleBefore.IsZero() && e.ProcessingStartedAt != nil && !e.ProcessingStartedAt.Before(guard.StaleBefore) {
		return nil, utils.ErrStateMismatch
	}
	if from == models.EvaluationProcessing && to == models.EvaluationCompleted && f.failFinal > 0 {
		f.failFinal--
		return nil, errors.New("write concern timeout")
	}
	e.Status = to
	applyPatch(&e, patch)
	f.byID[id] = e
	return &e, nil
}

func (f *fakeEvaluations) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	if e.Status == models.EvaluationProcessing {
		return utils.ErrStateMismatch
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeEvaluations) DeleteByInterview(_ context.Context, interviewID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, e := range f.byID {
		if e.InterviewID == interviewID {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func applyPatch(e *models.Evaluation, p models.EvaluationPatch) {
	if p.ClearResults {
		e.FacialAnalysis, e.AudioAnalysis, e.TextAnalysis = nil, nil, nil
		e.OverallScore, e.IndividualScores, e.ThresholdsMet, e.Passed = nil, nil, nil, nil
		e.Grade, e.Feedback, e.AnalysisErrors = "", "", nil
		e.CompletedAt, e.ProcessingTimeMS = nil, 0
	}
	if p.ClearError {
		e.Error = ""
	}
	if p.ClearLease {
		e.ProcessingStartedAt, e.ProcessingToken = nil, ""
	}
	if p.IncRetryCount {
		e.RetryCount++
	}
	if p.VideoPath != nil {
		e.VideoPath = *p.VideoPath
	}
	if p.AudioPath != nil {
		e.AudioPath = *p.AudioPath
	}
	if p.AnswerText != nil {
		e.AnswerText = *p.AnswerText
	}
	if p.LiveTranscript != nil {
		e.LiveTranscript = *p.LiveTranscript
	}
	if p.FacialAnalysis != nil {
		e.FacialAnalysis = p.FacialAnalysis
	}
	if p.AudioAnalysis != nil {
		e.AudioAnalysis = p.AudioAnalysis
	}
	if p.TextAnalysis != nil {
		e.TextAnalysis = p.TextAnalysis
	}
	if p.OverallScore != nil {
		e.OverallScore = p.OverallScore
	}
	if p.IndividualScores != nil {
		e.IndividualScores = p.IndividualScores
	}
	if p.ThresholdsMet != nil {
		e.ThresholdsMet = p.ThresholdsMet
	}
	if p.Passed != nil {
		e.Passed = p.Passed
	}
	if p.Grade != nil {
		e.Grade = *p.Grade
	}
	if p.Feedback != nil {
		e.Feedback = *p.Feedback
	}
	if p.AnalysisErrors != nil {
		e.AnalysisErrors = p.AnalysisErrors
	}
	if p.Error != nil {
		e.Error = *p.Error
	}
	if p.SubmittedAt != nil {
		e.SubmittedAt = p.SubmittedAt
	}
	if p.CompletedAt != nil {
		e.CompletedAt = p.CompletedAt
	}
	if p.ProcessingTimeMS != nil {
		e.ProcessingTimeMS = *p.ProcessingTimeMS
	}
	if p.ProcessingStartedAt != nil {
		e.ProcessingStartedAt = p.ProcessingStartedAt
	}
	if p.ProcessingToken != nil {
		e.ProcessingToken = *p.ProcessingToken
	}
}

type fakeInterviews struct {
	mu   sync.Mutex
	byID map[string]models.Interview
}

func newFakeInterviews(list ...models.Interview) *fakeInterviews {
	f := &fakeInterviews{byID: map[string]models.Interview{}}
	for _, iv := range list {
		f.byID[iv.ID] = iv
	}
	return f
}

func (f *fakeInterviews) get(id string) models.Interview {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeInterviews) Create(_ context.Context, iv *models.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[iv.ID] = *iv
	return nil
}

func (f *fakeInterviews) GetByID(_ context.Context, id string) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &iv, nil
}

func (f *fakeInterviews) ListByUser(_ context.Context, userID string, _ int64) ([]models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Interview{}
	for _, iv := range f.byID {
		if iv.UserID == userID {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (f *fakeInterviews) MarkStarted(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.byID[id]
	if !ok || iv.Status != models.InterviewPending {
		return false, nil
	}
	iv.Status = models.InterviewInProgress
	iv.StartedAt = &at
	f.byID[id] = iv
	return true, nil
}

func (f *fakeInterviews) UpdateProgress(_ context.Context, id string, p models.InterviewProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	iv.Status = p.Status
	iv.ProgressPct = p.ProgressPct
	iv.OverallScore = p.OverallScore
	iv.CompletedQuestions = p.CompletedQuestions
	iv.PassedQuestions = p.PassedQuestions
	iv.CompletedAt = p.CompletedAt
	f.byID[id] = iv
	return nil
}

func (f *fakeInterviews) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeRealtimeEvents struct {
	mu   sync.Mutex
	list []models.RealtimeEvent
}

func (f *fakeRealtimeEvents) Insert(_ context.Context, e *models.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, *e)
	return nil
}

func (f *fakeRealtimeEvents) ListByEvaluation(_ context.Context, evaluationID string, _ int64) ([]models.RealtimeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RealtimeEvent
	for _, e := range f.list {
		if e.EvaluationID == evaluationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRealtimeEvents) DeleteByEvaluation(_ context.Context, evaluationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.list[:0]
	for _, e := range f.list {
		if e.EvaluationID != evaluationID {
			kept = append(kept, e)
		}
	}
	f.list = kept
	return nil
}

type fakeCalls struct {
	mu   sync.Mutex
	rows []models.AnalyzerCall
}

func (f *fakeCalls) Insert(_ context.Context, c *models.AnalyzerCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeCalls) ListByEvaluation(_ context.Context, evaluationID string, _ int) ([]models.AnalyzerCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AnalyzerCall{}
	for _, r := range f.rows {
		if r.EvaluationID == evaluationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCalls) DeleteByEvaluation(_ context.Context, evaluationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.EvaluationID != evaluationID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

// fakeAnalyzer answers from per-service functions; a nil function fails the call.
type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  []string
	texts  []string
	facial func() (*models.FacialResult, error)
	audio  func() (*models.AudioResult, error)
	text   func(answer string) (*models.TextResult, error)
}

func (a *fakeAnalyzer) note(svc, answer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, svc)
	if svc == "text" {
		a.texts = append(a.texts, answer)
	}
}

func (a *fakeAnalyzer) AnalyzeFacial(_ context.Context, media analyzer.MediaFile, _ analyzer.MediaType) (*models.FacialResult, error) {
	a.note("facial", "")
	_, _ = io.Copy(io.Discard, media.Content)
	if a.facial == nil {
		return nil, errors.New("unexpected facial call")
	}
	return a.facial()
}

func (a *fakeAnalyzer) AnalyzeAudio(_ context.Context, media analyzer.MediaFile, _ analyzer.QuestionContext) (*models.AudioResult, error) {
	a.note("audio", "")
	_, _ = io.Copy(io.Discard, media.Content)
	if a.audio == nil {
		return nil, errors.New("unexpected audio call")
	}
	return a.audio()
}

func (a *fakeAnalyzer) AnalyzeText(_ context.Context, req analyzer.TextRequest) (*models.TextResult, error) {
	a.note("text", req.AnswerText)
	if a.text == nil {
		return nil, errors.New("unexpected text call")
	}
	return a.text(req.AnswerText)
}

func (a *fakeAnalyzer) HealthCheck(context.Context) analyzer.HealthReport {
	return analyzer.HealthReport{Overall: analyzer.HealthHealthy}
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type fakeMedia struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
}

func newFakeMedia(paths ...string) *fakeMedia {
	m := &fakeMedia{files: map[string][]byte{}}
	for _, p := range paths {
		m.files[p] = []byte("media:" + p)
	}
	return m
}

func (m *fakeMedia) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[objectName] = b
	return objectName, nil
}

func (m *fakeMedia) Open(_ context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[p]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *fakeMedia) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	m.deleted = append(m.deleted, p)
	return nil
}

func (m *fakeMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]any
	dels []string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]any{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	if cs, ok := v.(cachedStatus); ok {
		*(dst.(*cachedStatus)) = cs
	}
	return true, nil
}

func (c *fakeCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.dels = append(c.dels, k)
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.EvaluationUpdated
}

func (p *fakePublisher) PublishEvaluationUpdated(_ context.Context, ev events.EvaluationUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fakeSTT struct {
	text string
	err  error
}

func (s fakeSTT) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return s.text, 0.9, s.err
}

func (fakeSTT) Close() error { return nil }
