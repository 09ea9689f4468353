package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	JWTSecret    string
	JWTExpiresIn string
	GeminiAPIKey string
	Port         string
	GinMode      string
	CORSOrigins  []string

	// Upload handling
	MaxFileSize         int64
	AllowedTypes        []string
	FileStorageDir      string
	SyncProcessingLimit int64

	// Chunking
	MinChunkSize  int
	MaxChunkSize  int
	SplitSize     int
	ExtractionCap int

	// Vector store
	VectorIndexDir   string
	VectorDimensions int

	// Pipeline
	PipelineWorkers   int
	ProgressBuffer    int
	RevisionSweepCron string

	// Gemini models
	GenerationModel string
	EmbeddingsModel string
	GeminiTier      string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/studyai"),
		DBName:       getEnv("DB_NAME", "studyai"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getEnv("JWT_EXPIRES_IN", "24h"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8501"), ","),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB upload cap
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "pdf,txt,md,xlsx"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./uploads"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 5242880), // larger files go to the queue

		MinChunkSize:  getEnvInt("MIN_CHUNK_SIZE", 100),
		MaxChunkSize:  getEnvInt("MAX_CHUNK_SIZE", 1500),
		SplitSize:     getEnvInt("CHUNK_SPLIT_SIZE", 800),
		ExtractionCap: getEnvInt("EXTRACTION_CHUNK_CAP", 20),

		VectorIndexDir:   getEnv("VECTOR_INDEX_DIR", "./vector_indexes"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		PipelineWorkers:   getEnvInt("PIPELINE_WORKERS", 4),
		ProgressBuffer:    getEnvInt("PROGRESS_BUFFER", 64),
		RevisionSweepCron: getEnv("REVISION_SWEEP_CRON", "0 3 * * *"),

		GenerationModel: getEnv("GEMINI_GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
