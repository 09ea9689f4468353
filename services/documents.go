package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/models"
	"studyai-platform/utils"
)

// DocumentService owns upload intake and document lifecycle, including the
// deletion cascade across concepts and the vector index
type DocumentService struct {
	config  *config.Config
	store   Store
	vectors VectorIndex
	audit   *models.AuditLogger
}

func NewDocumentService(cfg *config.Config, store Store, vectors VectorIndex, audit *models.AuditLogger) *DocumentService {
	os.MkdirAll(cfg.FileStorageDir, 0o755)

	return &DocumentService{
		config:  cfg,
		store:   store,
		vectors: vectors,
		audit:   audit,
	}
}

// ValidateUpload rejects files with disallowed extensions or excessive size
// before anything is written to disk
func (ds *DocumentService) ValidateUpload(header *multipart.FileHeader) error {
	if header.Size > ds.config.MaxFileSize {
		return fmt.Errorf("file exceeds the %d byte limit", ds.config.MaxFileSize)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	for _, allowed := range ds.config.AllowedTypes {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type: %q", ext)
}

// SaveUpload stores the file and creates a pending document record. When an
// identical file already exists for the user, the existing document is
// returned instead and nothing new is written.
func (ds *DocumentService) SaveUpload(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*models.StudyDocument, bool, error) {
	userDir := filepath.Join(ds.config.FileStorageDir, userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create storage directory: %w", err)
	}

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	storedPath := filepath.Join(userDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(storedPath)
		return nil, false, fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(storedPath)
		return nil, false, err
	}

	hash, err := utils.HashFile(storedPath)
	if err != nil {
		os.Remove(storedPath)
		return nil, false, err
	}

	existing, err := ds.store.FindDocumentByHash(ctx, userID, hash)
	if err != nil {
		os.Remove(storedPath)
		return nil, false, err
	}
	if existing != nil {
		os.Remove(storedPath)
		return existing, true, nil
	}

	now := time.Now()
	doc := &models.StudyDocument{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  header.Filename,
		FilePath:  storedPath,
		FileHash:  hash,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ds.store.CreateDocument(ctx, doc); err != nil {
		os.Remove(storedPath)
		return nil, false, err
	}

	event := &models.LearningEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: models.EventUpload,
		Result:    map[string]any{"document_id": doc.ID, "filename": doc.Filename},
		Timestamp: now,
	}
	if err := ds.store.InsertEvent(ctx, event); err != nil {
		logger.Warn("failed to record upload event", "error", err)
	}

	return doc, false, nil
}

// Delete removes a document and everything derived from it: concepts,
// indexed vectors and the stored file
func (ds *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := ds.store.GetDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}

	deletedConcepts, err := ds.store.DeleteConceptsByDocument(ctx, userID, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete concepts: %w", err)
	}

	removedVectors, err := ds.vectors.DeleteByDocument(userID, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	if err := ds.store.DeleteDocument(ctx, userID, documentID); err != nil {
		return err
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove stored file", "path", doc.FilePath, "error", err)
		}
	}

	if ds.audit != nil {
		ds.audit.LogAsync(&models.AuditEvent{
			UserID:     userID,
			Action:     "DELETE",
			Resource:   "document",
			ResourceID: documentID,
			Success:    true,
			Details: map[string]interface{}{
				"concepts_deleted": deletedConcepts,
				"vectors_removed":  removedVectors,
			},
		})
	}

	logger.Info("document deleted",
		"document_id", documentID,
		"concepts_deleted", deletedConcepts,
		"vectors_removed", removedVectors)
	return nil
}
