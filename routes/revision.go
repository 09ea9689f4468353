package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyai-platform/middleware"
	"studyai-platform/models"
	"studyai-platform/utils"
)

// SetupRevisionRoutes registers plan generation and retrieval
func SetupRevisionRoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/revision")
	group.Use(auth.RequireAuth())

	group.POST("/plan", generatePlan(deps))
	group.GET("/plan", getPlan(deps))
}

type planRequest struct {
	Strategy       string   `json:"strategy"`
	FocusDocuments []string `json:"focus_documents"`
	HorizonDays    int      `json:"horizon_days"`
}

func generatePlan(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req planRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			utils.RespondWithBadRequest(c, "Invalid request body", nil)
			return
		}
		if req.Strategy == "" {
			req.Strategy = models.StrategyBalanced
		}

		plan, err := deps.Scheduler.GeneratePlan(c.Request.Context(), userID, req.Strategy, req.FocusDocuments, req.HorizonDays)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate plan", nil)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func getPlan(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		plan, err := deps.Store.GetRevisionPlan(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load plan", nil)
			return
		}
		if plan == nil {
			utils.RespondWithNotFound(c, "No revision plan yet, generate one first")
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}
