package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"studyai-platform/internal/logger"
	"studyai-platform/models"
	"studyai-platform/services"
)

const (
	// TaskProcessDocument runs the full processing pipeline for one upload
	TaskProcessDocument = "document:process"
)

type DocumentProcessPayload struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
}

// NewDocumentProcessTask creates a queued pipeline run for one document
func NewDocumentProcessTask(userID, documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		UserID:     userID,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued pipeline runs in the worker process
type TaskProcessor struct {
	store    services.Store
	pipeline *services.Pipeline
}

func NewTaskProcessor(store services.Store, pipeline *services.Pipeline) *TaskProcessor {
	return &TaskProcessor{store: store, pipeline: pipeline}
}

// ProcessDocument runs the pipeline for a queued document. Queued runs have
// no attached progress consumer, so no sink is passed. A document already
// marked done is skipped so redelivery cannot double-process.
func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("processing queued document", "user_id", payload.UserID, "document_id", payload.DocumentID)

	doc, err := p.store.GetDocument(ctx, payload.UserID, payload.DocumentID)
	if err != nil {
		if err == services.ErrDocumentNotFound {
			return fmt.Errorf("document %s gone: %w", payload.DocumentID, asynq.SkipRetry)
		}
		return err
	}
	if doc.Status == models.StatusDone {
		return nil
	}

	state := p.pipeline.Run(ctx, doc, nil)
	if state.Err != nil {
		// The pipeline already marked the document and recorded the
		// failure; retrying would re-run stages that persist side effects
		return fmt.Errorf("pipeline failed: %v: %w", state.Err, asynq.SkipRetry)
	}

	logger.Info("queued document processed", "document_id", payload.DocumentID, "chunks", len(state.Chunks))
	return nil
}
