package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interviewx/internal/services"
	"github.com/yoockh/interviewx/internal/utils"
)

type EvaluationHandler struct {
	svc      services.EvaluationService
	realtime services.RealtimeService
	logs     services.AnalysisLogService

	// maxBody caps a whole submit request
	maxBody int64
}

func NewEvaluationHandler(svc services.EvaluationService, realtime services.RealtimeService, logs services.AnalysisLogService, maxFileSize int64) *EvaluationHandler {
	if maxFileSize <= 0 {
		maxFileSize = services.MaxVideoBytes
	}
	return &EvaluationHandler{
		svc:      svc,
		realtime: realtime,
		logs:     logs,
		maxBody:  2*maxFileSize + 1<<20,
	}
}

type StartEvaluationRequest struct {
	InterviewID string `json:"interviewId" binding:"required"`
	QuestionID  string `json:"questionId" binding:"required"`
}

type startedEvaluation struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	QuestionText string `json:"questionText"`
	TimeLimit    int    `json:"timeLimit"`
}

type submittedEvaluation struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (h *EvaluationHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "EvaluationHandler.Start", "interviewId and questionId are required", err))
		return
	}

	ev, err := h.svc.Start(c.Request.Context(), userID, req.InterviewID, req.QuestionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"evaluation": startedEvaluation{
		ID:           ev.ID,
		Status:       string(ev.Status),
		QuestionText: ev.QuestionText,
		TimeLimit:    ev.TimeLimit,
	}})
}

func (h *EvaluationHandler) Submit(c *gin.Context) {
	const op = "EvaluationHandler.Submit"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "upload is too large", err))
			return
		}
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid multipart body", err))
		return
	}

	in := services.SubmitInput{AnswerText: c.PostForm("answerText")}

	video, closeVideo, err := formUpload(c, "video")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable video upload", err))
		return
	}
	defer closeVideo()
	audio, closeAudio, err := formUpload(c, "audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable audio upload", err))
		return
	}
	defer closeAudio()
	in.Video, in.Audio = video, audio

	ev, err := h.svc.Submit(c.Request.Context(), userID, c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"evaluation": submittedEvaluation{
		ID:          ev.ID,
		Status:      string(ev.Status),
		SubmittedAt: ev.SubmittedAt,
	}})
}

// formUpload opens an optional multipart file field.
func formUpload(c *gin.Context, field string) (*services.MediaUpload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &services.MediaUpload{
		Filename:    fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Content:     f,
	}, func() { _ = f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *EvaluationHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ev, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluation": ev})
}

func (h *EvaluationHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	view, err := h.svc.Status(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *EvaluationHandler) Retry(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ev, err := h.svc.Retry(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": ev.ID, "status": ev.Status, "retryCount": ev.RetryCount})
}

func (h *EvaluationHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "evaluation deleted"})
}

func (h *EvaluationHandler) ListByInterview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	list, summary, err := h.svc.ListByInterview(c.Request.Context(), userID, c.Param("interview_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": list, "summary": summary})
}

func (h *EvaluationHandler) Analyses(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	calls, err := h.logs.ListCalls(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (h *EvaluationHandler) Realtime(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sum, err := h.realtime.Summary(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
