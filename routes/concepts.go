package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyai-platform/middleware"
	"studyai-platform/services"
	"studyai-platform/utils"
)

// SetupConceptRoutes registers concept listing and review endpoints
func SetupConceptRoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/concepts")
	group.Use(auth.RequireAuth())

	group.GET("", listConcepts(deps))
	group.POST("/:id/review", reviewConcept(deps))
}

func listConcepts(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var (
			concepts interface{}
			err      error
		)
		if documentID := c.Query("document_id"); documentID != "" {
			concepts, err = deps.Store.ListConceptsByDocument(c.Request.Context(), userID, documentID)
		} else {
			concepts, err = deps.Store.ListConceptsByUser(c.Request.Context(), userID)
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list concepts", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"concepts": concepts})
	}
}

type reviewRequest struct {
	Quality *int `json:"quality" binding:"required"`
}

// reviewConcept applies one spaced-repetition review. The update is
// broadcast to every same-named concept the user owns.
func reviewConcept(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "quality (0-5) is required", nil)
			return
		}
		if *req.Quality < 0 || *req.Quality > 5 {
			utils.RespondWithBadRequest(c, "quality must be between 0 and 5", nil)
			return
		}

		concept, err := deps.Scheduler.ApplyReview(c.Request.Context(), userID, c.Param("id"), *req.Quality)
		if err != nil {
			if err == services.ErrConceptNotFound {
				utils.RespondWithNotFound(c, "Concept not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to apply review", nil)
			return
		}
		c.JSON(http.StatusOK, concept)
	}
}
