package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studyai-platform/internal/logger"
	"studyai-platform/internal/queue"
	"studyai-platform/middleware"
	"studyai-platform/models"
	"studyai-platform/services"
	"studyai-platform/utils"
)

// SetupMaterialRoutes registers upload, progress streaming and document
// management endpoints
func SetupMaterialRoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/materials")
	group.Use(auth.RequireAuth())

	group.POST("/upload", handleUpload(deps))
	group.GET("/:id/progress", streamProgress(deps))
	group.GET("", listMaterials(deps))
	group.GET("/:id", getMaterial(deps))
	group.DELETE("/:id", deleteMaterial(deps))
}

// handleUpload accepts a study file, stores it and starts processing.
// Small files run in-process with a progress sink the client can stream;
// large files are queued for the worker and report status via polling.
func handleUpload(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if err := deps.Documents.ValidateUpload(header); err != nil {
			if header.Size > deps.Config.MaxFileSize {
				utils.RespondWithTooLarge(c, err.Error())
				return
			}
			utils.RespondWithUnsupportedType(c, err.Error(), gin.H{"allowed": deps.Config.AllowedTypes})
			return
		}

		doc, duplicate, err := deps.Documents.SaveUpload(c.Request.Context(), userID, file, header)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to store upload", nil)
			return
		}
		if duplicate {
			c.JSON(http.StatusOK, models.UploadResponse{
				ID:       doc.ID,
				Filename: doc.Filename,
				Status:   doc.Status,
				Message:  "Identical file already uploaded",
			})
			return
		}

		if header.Size <= deps.Config.SyncProcessingLimit {
			sink := services.NewProgressSink(deps.Config.ProgressBuffer)
			deps.Progress.Register(doc.ID, sink)

			go func() {
				defer deps.Progress.Remove(doc.ID)
				defer sink.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				defer cancel()
				deps.Pipeline.Run(ctx, doc, sink)
			}()

			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:       doc.ID,
				Filename: doc.Filename,
				Status:   models.StatusPending,
				Message:  "Processing started, stream progress at /api/materials/" + doc.ID + "/progress",
			})
			return
		}

		task, err := queue.NewDocumentProcessTask(userID, doc.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := deps.Queue.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       doc.ID,
			Filename: doc.Filename,
			Status:   models.StatusPending,
			Message:  "Queued for background processing",
			TaskID:   info.ID,
		})
	}
}

// streamProgress relays pipeline progress events as server-sent events
// until a terminal event arrives or the client disconnects
func streamProgress(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		documentID := c.Param("id")

		doc, err := deps.Store.GetDocument(c.Request.Context(), userID, documentID)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		sink, ok := deps.Progress.Get(documentID)
		if !ok {
			// No live run; report the stored status as a single event
			c.Header("Content-Type", "text/event-stream")
			status := models.ProgressDone
			if doc.Status == models.StatusError {
				status = models.ProgressError
			}
			c.SSEvent("progress", models.ProgressEvent{
				Stage:   StatusStage(doc.Status),
				Status:  status,
				Message: fmt.Sprintf("Document is %s", doc.Status),
			})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		relayProgress(c, sink, progressKeepaliveInterval, documentID)
	}
}

// progressKeepaliveInterval is how often a comment frame is written to an
// idle stream so proxies do not time out the connection during long stages
const progressKeepaliveInterval = 15 * time.Second

func relayProgress(c *gin.Context, sink *services.ProgressSink, keepaliveEvery time.Duration, documentID string) {
	keepalive := time.NewTicker(keepaliveEvery)
	defer keepalive.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case event, open := <-sink.Events():
			if !open {
				return
			}
			c.SSEvent("progress", event)
			c.Writer.Flush()
			if event.Terminal() {
				return
			}
		case <-keepalive.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		case <-clientGone:
			logger.Debug("progress consumer disconnected", "document_id", documentID)
			return
		}
	}
}

// StatusStage maps a stored document status onto a progress stage name for
// late-attaching consumers
func StatusStage(status string) string {
	if status == models.StatusError {
		return models.StageError
	}
	return "analytics"
}

func listMaterials(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		docs, err := deps.Store.ListDocuments(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

func getMaterial(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		doc, err := deps.Store.GetDocument(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func deleteMaterial(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		err := deps.Documents.Delete(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			if err == services.ErrDocumentNotFound {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document and derived data deleted"})
	}
}
