package services

import (
	"studyai-platform/internal/vectorstore"
	"studyai-platform/models"
)

// PipelineState is the record threaded through every pipeline stage for one
// document run. The orchestrator owns it exclusively for the run's duration;
// persisted side effects live in the document store, not here.
type PipelineState struct {
	UserID     string
	DocumentID string
	FilePath   string
	Filename   string

	Chunks      []string
	Concepts    []models.Concept
	Embeddings  [][]float32
	VectorIDs   []string
	Retrieved   []RetrievedFragment
	Connections []models.Connection
	Summary     string
	Quiz        *models.Quiz
	Plan        *models.RevisionPlan
	Analytics   *models.AnalyticsSnapshot

	// Err is the terminal error recorded by the run guard, nil on success
	Err error
}

// RetrievedFragment is one related chunk found during retrieval, annotated
// with a natural-language reason for the relation
type RetrievedFragment struct {
	vectorstore.Result
	Reason string
}
