package services

import (
	"context"
	"errors"
	"time"

	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// ErrConceptNotFound is returned when a review targets a nonexistent concept
var ErrConceptNotFound = errors.New("concept not found")

// ErrDocumentNotFound is returned when an operation targets a missing document
var ErrDocumentNotFound = errors.New("document not found")

// TextGenerator is the language model gateway: prompt in, text out.
// Callers must treat failure as recoverable and degrade where the
// surrounding operation allows it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into fixed-dimension embedding vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the per-owner similarity store surface consumed by the
// pipeline and scheduler. Implemented by vectorstore.Manager.
type VectorIndex interface {
	Add(owner string, vectors [][]float32, entries []vectorstore.Entry) ([]string, error)
	Search(owner string, query []float32, k int, filter func(vectorstore.Entry) bool) ([]vectorstore.Result, error)
	DeleteByDocument(owner, documentID string) (int, error)
	Size(owner string) int
}

// Store is the persistent document store consumed by the orchestrator and
// scheduler. Implemented against MongoDB in internal/store.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *models.StudyDocument) error
	GetDocument(ctx context.Context, userID, id string) (*models.StudyDocument, error)
	FindDocumentByHash(ctx context.Context, userID, hash string) (*models.StudyDocument, error)
	ListDocuments(ctx context.Context, userID string) ([]models.StudyDocument, error)
	UpdateDocumentStatus(ctx context.Context, id, status, errorMessage string) error
	SetDocumentResults(ctx context.Context, id, summary string, connections []models.Connection, chunkCount int) error
	DeleteDocument(ctx context.Context, userID, id string) error

	// Concepts
	InsertConcepts(ctx context.Context, concepts []models.Concept) error
	GetConcept(ctx context.Context, userID, id string) (*models.Concept, error)
	ListConceptsByUser(ctx context.Context, userID string) ([]models.Concept, error)
	ListConceptsByDocument(ctx context.Context, userID, documentID string) ([]models.Concept, error)
	DeleteConceptsByDocument(ctx context.Context, userID, documentID string) (int64, error)
	// BroadcastReview applies one review's resulting state to every concept
	// record for the owner whose name matches case-insensitively, as a
	// single statement so the update is all-or-nothing.
	BroadcastReview(ctx context.Context, userID, name string, update ReviewUpdate) (int64, error)

	// Quizzes
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, userID, id string) (*models.Quiz, error)
	ListQuizzes(ctx context.Context, userID string) ([]models.Quiz, error)
	RecordQuizSubmission(ctx context.Context, quizID string, score float64, answers []models.QuizAnswer) error

	// Revision plans
	UpsertRevisionPlan(ctx context.Context, plan *models.RevisionPlan) error
	GetRevisionPlan(ctx context.Context, userID string) (*models.RevisionPlan, error)

	// Learning events
	InsertEvent(ctx context.Context, event *models.LearningEvent) error
	ListEvents(ctx context.Context, userID string, limit int) ([]models.LearningEvent, error)

	// ListUsersWithDueConcepts returns user ids holding at least one concept
	// due before the cutoff, for the nightly plan refresh sweep.
	ListUsersWithDueConcepts(ctx context.Context, before time.Time) ([]string, error)

	// MarkStaleProcessing flips documents stuck in processing since before
	// the cutoff to error, covering runs that died mid-process.
	MarkStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error)
}

// ReviewUpdate carries the post-review SM-2 state written by a broadcast
type ReviewUpdate struct {
	MasteryScore    float64
	EasinessFactor  float64
	RepetitionCount int
	IntervalDays    int
	NextReview      time.Time
}
