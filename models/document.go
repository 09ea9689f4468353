package models

import "time"

// StudyDocument represents one uploaded study material and everything the
// processing pipeline derived from it
type StudyDocument struct {
	ID           string       `bson:"_id,omitempty" json:"id"`
	UserID       string       `bson:"user_id" json:"user_id"`
	Filename     string       `bson:"filename" json:"filename"`
	FilePath     string       `bson:"file_path" json:"file_path"` // Absolute path for pipeline re-runs
	FileHash     string       `bson:"file_hash" json:"file_hash"` // For deduplication
	Summary      string       `bson:"summary,omitempty" json:"summary,omitempty"`
	Connections  []Connection `bson:"connections,omitempty" json:"connections,omitempty"`
	ChunkCount   int          `bson:"chunk_count" json:"chunk_count"`
	Status       string       `bson:"status" json:"status"` // pending, processing, done, error
	ErrorMessage string       `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updated_at"`
}

// Connection is a semantic link from this document to another one,
// synthesized during the cross-link pipeline stage
type Connection struct {
	DocumentID string  `bson:"document_id" json:"document_id"`
	Filename   string  `bson:"filename" json:"filename"`
	Reason     string  `bson:"reason" json:"reason"`
	Score      float64 `bson:"score" json:"score"`
	Snippet    string  `bson:"snippet" json:"snippet"`
}

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// UploadResponse represents the response after a successful upload
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"` // Set when processing was queued
}
