package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interviewx/internal/utils"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code      utils.Code `json:"code"`
	Message   string     `json:"message"`
	RequestID string     `json:"requestId,omitempty"`
}

// writeError maps err onto its HTTP status. Server-side failures are attached
// to the gin context so the request logger prints the cause.
func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := APIError{
		Code:      utils.CodeInternal,
		Message:   http.StatusText(status),
		RequestID: c.GetString("request_id"),
	}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		body.Code = ae.Code
		body.Message = ae.Message
	}
	c.AbortWithStatusJSON(status, body)
}

func invalidArgument(c *gin.Context, op, msg string) {
	writeError(c, utils.E(utils.CodeInvalidArgument, op, msg, nil))
}

func requireUserID(c *gin.Context) (string, bool) {
	if uid := c.GetString("user_id"); uid != "" {
		return uid, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
