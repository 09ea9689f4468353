package models

import "time"

// LearningEvent is an append-only record of user study activity
type LearningEvent struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	UserID    string         `bson:"user_id" json:"user_id"`
	EventType string         `bson:"event_type" json:"event_type"`
	ConceptID string         `bson:"concept_id,omitempty" json:"concept_id,omitempty"`
	Result    map[string]any `bson:"result,omitempty" json:"result,omitempty"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
}

// Learning event types
const (
	EventUpload   = "upload"
	EventQuiz     = "quiz"
	EventRevision = "revision"
	EventSearch   = "search"
)
