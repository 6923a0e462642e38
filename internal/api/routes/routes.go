package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/interviewx/internal/api/handlers"
	"github.com/yoockh/interviewx/internal/api/middleware"
)

type Deps struct {
	JWTSecret string
	Metrics   http.Handler

	Interview  *handlers.InterviewHandler
	Evaluation *handlers.EvaluationHandler
	Health     *handlers.HealthHandler
	WS         *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", d.Health.Ping)
	r.GET("/ai-services/health", d.Health.AIServices)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWTSecret))

	auth.POST("/interviews", d.Interview.Create)
	auth.GET("/interviews", d.Interview.List)
	auth.GET("/interviews/:id", d.Interview.Get)
	auth.DELETE("/interviews/:id", d.Interview.Delete)

	auth.POST("/evaluations/start", d.Evaluation.Start)
	auth.GET("/evaluations/interview/:interview_id", d.Evaluation.ListByInterview)
	auth.POST("/evaluations/:id/submit", d.Evaluation.Submit)
	auth.GET("/evaluations/:id", d.Evaluation.Get)
	auth.GET("/evaluations/:id/status", d.Evaluation.Status)
	auth.POST("/evaluations/:id/retry", d.Evaluation.Retry)
	auth.DELETE("/evaluations/:id", d.Evaluation.Delete)
	auth.GET("/evaluations/:id/analyses", d.Evaluation.Analyses)
	auth.GET("/evaluations/:id/realtime", d.Evaluation.Realtime)

	// WebSocket
	auth.GET("/ws", d.WS.Connect)
}
