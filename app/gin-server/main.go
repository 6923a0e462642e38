package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/interviewx/config"
	"github.com/yoockh/interviewx/internal/api/handlers"
	"github.com/yoockh/interviewx/internal/api/middleware"
	"github.com/yoockh/interviewx/internal/api/routes"
	"github.com/yoockh/interviewx/internal/cache"
	"github.com/yoockh/interviewx/internal/events"
	"github.com/yoockh/interviewx/internal/logger"
	"github.com/yoockh/interviewx/internal/metrics"
	"github.com/yoockh/interviewx/internal/providers/analyzer"
	"github.com/yoockh/interviewx/internal/providers/stt"
	"github.com/yoockh/interviewx/internal/realtime"
	mongorepo "github.com/yoockh/interviewx/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interviewx/internal/repositories/postgres"
	"github.com/yoockh/interviewx/internal/services"
	"github.com/yoockh/interviewx/internal/storage"
	"github.com/yoockh/interviewx/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	log.Info("MongoDB connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	var calls pgrepo.AnalyzerCallRepo = pgrepo.NopAnalyzerCallRepo{}
	if os.Getenv("POSTGRES_URI") != "" {
		if err := config.InitPostgres(); err != nil {
			log.Fatalf("PostgreSQL init error: %v", err)
		}
		if err := config.MigratePostgres(); err != nil {
			log.Fatalf("PostgreSQL migrate error: %v", err)
		}
		calls = pgrepo.NewAnalyzerCallRepo(config.PostgresDB)
		log.Info("PostgreSQL connected")
	} else {
		log.Warn("POSTGRES_URI not set; analyzer call ledger disabled")
	}

	media, closeMedia, err := openMediaStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer closeMedia()

	m := metrics.New()
	analyzers := analyzer.NewClient(analyzer.Config{
		FacialURL:     cfg.FacialAnalysisURL,
		AudioURL:      cfg.AudioAnalysisURL,
		TextURL:       cfg.TextAnalysisURL,
		CallTimeout:   cfg.AnalyzerTimeout,
		HealthTimeout: cfg.HealthTimeout,
	}, analyzer.WithObserver(m))

	var speech stt.Provider
	if cfg.GoogleSTTEnabled {
		gs, err := stt.NewGoogleSpeech(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			log.Fatalf("speech-to-text init error: %v", err)
		}
		defer gs.Close()
		speech = gs
	}

	db := config.MongoDatabase()
	interviewRepo := mongorepo.NewInterviewRepo(db)
	evaluationRepo := mongorepo.NewEvaluationRepo(db)
	realtimeRepo := mongorepo.NewRealtimeEventRepo(db)

	statusCache := cache.NewRedisCache(config.RedisClient, "interviewx")
	bus := events.NewRedisBus(config.RedisClient, log)
	queue := workers.NewRedisQueue(config.RedisClient, workers.DefaultStream)

	progress := services.NewProgressService(interviewRepo, evaluationRepo)
	orchestrator := services.NewOrchestrator(services.OrchestratorDeps{
		Evaluations: evaluationRepo,
		Progress:    progress,
		Analyzer:    analyzers,
		Media:       media,
		Calls:       calls,
		Events:      bus,
		Cache:       statusCache,
		STT:         speech,
		Observer:    m,
		Logger:      log,
	}, services.OrchestratorConfig{
		Liveness:               cfg.OrchestrationLiveness,
		TranscribeAudioAnswers: cfg.TranscribeAudioAnswers,
	})
	evaluationSvc := services.NewEvaluationService(services.EvaluationDeps{
		Interviews:  interviewRepo,
		Evaluations: evaluationRepo,
		Realtime:    realtimeRepo,
		Calls:       calls,
		Progress:    progress,
		Media:       media,
		Queue:       queue,
		Cache:       statusCache,
		Logger:      log,
	}, services.IntakeConfig{
		MaxFileSize:    cfg.MaxFileSize,
		StatusCacheTTL: cfg.StatusCacheTTL,
	})
	interviewSvc := services.NewInterviewService(services.InterviewDeps{
		Interviews:  interviewRepo,
		Evaluations: evaluationRepo,
		Realtime:    realtimeRepo,
		Calls:       calls,
		Media:       media,
		Cache:       statusCache,
		Logger:      log,
	})
	realtimeSvc := services.NewRealtimeService(interviewRepo, evaluationRepo, realtimeRepo)
	analysisLogs := services.NewAnalysisLogService(evaluationRepo, calls)

	pool := &workers.EvaluationWorkerPool{
		Redis:          config.RedisClient,
		Orchestrator:   orchestrator,
		NumWorkers:     cfg.EvaluationWorkers,
		ProcessTimeout: cfg.OrchestrationLiveness,
		Logger:         log,
		ConsumerPrefix: consumerPrefix(),
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("evaluation workers error: %v", err)
	}
	sweeper := &workers.StaleSweeper{
		Evaluations: evaluationRepo,
		Queue:       queue,
		Liveness:    cfg.OrchestrationLiveness,
		Interval:    cfg.SweepInterval,
		Logger:      log,
	}
	go sweeper.Run(ctx)

	hub, err := realtime.NewHub(realtime.HubDeps{
		Sessions: realtimeSvc,
		Status:   evaluationSvc,
		Analyzer: analyzers,
		Observer: m,
		Logger:   log,
	}, realtime.Config{CallTimeout: cfg.AnalyzerTimeout})
	if err != nil {
		log.Fatalf("realtime hub error: %v", err)
	}
	defer hub.Close()
	bus.SubscribeEvaluationUpdated(ctx, hub.DispatchEvaluationUpdated)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS(cfg.FrontendURL))
	routes.RegisterRoutes(r, routes.Deps{
		JWTSecret:  cfg.JWTSecret,
		Metrics:    m.Handler(),
		Interview:  handlers.NewInterviewHandler(interviewSvc),
		Evaluation: handlers.NewEvaluationHandler(evaluationSvc, realtimeSvc, analysisLogs, cfg.MaxFileSize),
		Health:     handlers.NewHealthHandler(analyzers),
		WS:         handlers.NewWSHandler(hub, cfg.FrontendURL, m, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := config.ClosePostgres(); err != nil {
		log.WithError(err).Warn("postgres close")
	}
	if err := config.CloseRedis(); err != nil {
		log.WithError(err).Warn("redis close")
	}
	if err := config.CloseMongo(shutdownCtx); err != nil {
		log.WithError(err).Warn("mongo close")
	}
}

func openMediaStore(ctx context.Context, cfg *config.App) (storage.MediaStore, func(), error) {
	if cfg.StorageBackend == "gcs" {
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	}
	local, err := storage.NewLocalStore(cfg.UploadPath)
	if err != nil {
		return nil, nil, err
	}
	return local, func() {}, nil
}

// consumerPrefix names this process inside the stream consumer group.
func consumerPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
