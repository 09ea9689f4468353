package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"studyai-platform/internal/ai"
	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/internal/store"
	"studyai-platform/internal/telemetry"
	"studyai-platform/internal/vectorstore"
	"studyai-platform/middleware"
	"studyai-platform/models"
	"studyai-platform/routes"
	"studyai-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Telemetry
	shutdownTracer, err := telemetry.InitTracer("studyai-platform")
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Gemini gateways
	generator, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GenerationModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	generator.SetMetrics(metrics)
	defer generator.Close()

	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	// Storage layers
	dataStore := store.NewMongoStore(db)
	vectors := vectorstore.NewManager(cfg.VectorIndexDir, cfg.VectorDimensions)
	audit := models.NewAuditLogger(db)

	// Services
	scheduler := services.NewScheduler(dataStore, vectors, embedder, metrics)
	quizzes := services.NewQuizService(dataStore, generator, scheduler)
	pipeline := services.NewPipeline(cfg, dataStore, vectors, generator, embedder, quizzes, scheduler, audit, metrics)
	documents := services.NewDocumentService(cfg, dataStore, vectors, audit)
	analytics := services.NewAnalyticsService(dataStore)
	export := services.NewExportService(dataStore, analytics)
	qna := services.NewQnAService(dataStore, vectors, embedder, generator)
	progress := services.NewProgressRegistry()

	// Nightly plan refresh
	sweep := services.NewSweepService(cfg, dataStore, scheduler)
	if err := sweep.Start(); err != nil {
		log.Fatal("Failed to start revision sweep:", err)
	}
	defer sweep.Stop()

	// Asynq client for offloading large uploads
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	deps := &routes.Deps{
		Config:    cfg,
		DB:        db,
		Store:     dataStore,
		Documents: documents,
		Pipeline:  pipeline,
		Progress:  progress,
		Scheduler: scheduler,
		Quizzes:   quizzes,
		Analytics: analytics,
		Export:    export,
		QnA:       qna,
		Queue:     queueClient,
		Audit:     audit,
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupMaterialRoutes(router, deps, authMiddleware)
	routes.SetupConceptRoutes(router, deps, authMiddleware)
	routes.SetupQuizRoutes(router, deps, authMiddleware)
	routes.SetupRevisionRoutes(router, deps, authMiddleware)
	routes.SetupAnalyticsRoutes(router, deps, authMiddleware)
	routes.SetupQnARoutes(router, deps, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
