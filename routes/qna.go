package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studyai-platform/internal/ai"
	"studyai-platform/middleware"
	"studyai-platform/utils"
)

// SetupQnARoutes registers the question answering endpoint
func SetupQnARoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/qna")
	group.Use(auth.RequireAuth())

	group.POST("/ask", askQuestion(deps))
	group.GET("/quota", quotaStatus(deps))
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func askQuestion(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req askRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "question is required", nil)
			return
		}

		if err := ai.CheckUserQuota(c.Request.Context(), deps.DB, userID, 2000); err != nil {
			if err == ai.ErrQuotaExceeded {
				utils.RespondWithError(c, http.StatusTooManyRequests, "quota_exceeded",
					"Daily generation quota exhausted", nil)
				return
			}
			utils.RespondWithInternalError(c, "Quota check failed", nil)
			return
		}

		answer, err := deps.QnA.Ask(c.Request.Context(), userID, req.Question)
		if err != nil {
			if errors.Is(err, ai.ErrGatewayUnavailable) {
				utils.RespondWithBadGateway(c, "Language model is unavailable, try again shortly")
				return
			}
			utils.RespondWithInternalError(c, "Failed to answer question", nil)
			return
		}
		c.JSON(http.StatusOK, answer)
	}
}

func quotaStatus(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		quota, err := ai.GetUserQuotaStatus(c.Request.Context(), deps.DB, userID)
		if err != nil {
			// First interactive call creates the record; until then report defaults
			c.JSON(http.StatusOK, gin.H{"tokens_used_today": 0, "requests_today": 0})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tokens_used_today": quota.TokensUsedToday,
			"requests_today":    quota.RequestsToday,
			"daily_token_limit": quota.DailyTokenLimit,
		})
	}
}
