package routes

import (
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"studyai-platform/internal/config"
	"studyai-platform/models"
	"studyai-platform/services"
)

// Deps bundles the shared handler dependencies wired in main
type Deps struct {
	Config    *config.Config
	DB        *mongo.Database
	Store     services.Store
	Documents *services.DocumentService
	Pipeline  *services.Pipeline
	Progress  *services.ProgressRegistry
	Scheduler *services.Scheduler
	Quizzes   *services.QuizService
	Analytics *services.AnalyticsService
	Export    *services.ExportService
	QnA       *services.QnAService
	Queue     *asynq.Client
	Audit     *models.AuditLogger
}
