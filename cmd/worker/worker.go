package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"studyai-platform/internal/ai"
	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/internal/queue"
	"studyai-platform/internal/store"
	"studyai-platform/internal/telemetry"
	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
	"studyai-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.DBName)

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

	// Storage and pipeline wiring
	dataStore := store.NewMongoStore(db)
	vectors := vectorstore.NewManager(cfg.VectorIndexDir, cfg.VectorDimensions)
	audit := models.NewAuditLogger(db)

	scheduler := services.NewScheduler(dataStore, vectors, embedder, metrics)
	quizzes := services.NewQuizService(dataStore, generator, scheduler)
	pipeline := services.NewPipeline(cfg, dataStore, vectors, generator, embedder, quizzes, scheduler, audit, metrics)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(dataStore, pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessDocument, processor.ProcessDocument)

	log.Println("Starting Asynq worker...")
	log.Printf("   Queues: critical(6), default(3), low(1)")
	log.Printf("   Redis: %s", redisOpt.Addr)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
