package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyai-platform/internal/ai"
	"studyai-platform/middleware"
	"studyai-platform/models"
	"studyai-platform/utils"
)

// SetupQuizRoutes registers quiz generation, retrieval and submission
func SetupQuizRoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/quizzes")
	group.Use(auth.RequireAuth())

	group.POST("", generateQuiz(deps))
	group.GET("", listQuizzes(deps))
	group.GET("/:id", getQuiz(deps))
	group.POST("/:id/submit", submitQuiz(deps))
}

type generateQuizRequest struct {
	DocumentID string `json:"document_id"`
	Difficulty string `json:"difficulty"`
}

func generateQuiz(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req generateQuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", nil)
			return
		}
		if req.Difficulty == "" {
			req.Difficulty = models.StrategyBalanced
		}

		// Interactive generation counts against the user's daily quota
		if err := ai.CheckUserQuota(c.Request.Context(), deps.DB, userID, 4000); err != nil {
			if err == ai.ErrQuotaExceeded {
				utils.RespondWithError(c, http.StatusTooManyRequests, "quota_exceeded",
					"Daily generation quota exhausted", nil)
				return
			}
			utils.RespondWithInternalError(c, "Quota check failed", nil)
			return
		}

		quiz, err := deps.Quizzes.Generate(c.Request.Context(), userID, req.DocumentID, req.Difficulty)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate quiz", nil)
			return
		}
		if len(quiz.Questions) == 0 {
			utils.RespondWithError(c, http.StatusBadGateway, "quiz_unavailable",
				"No questions could be generated, try again later", nil)
			return
		}

		c.JSON(http.StatusCreated, sanitizeQuiz(quiz))
	}
}

func listQuizzes(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		quizzes, err := deps.Store.ListQuizzes(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list quizzes", nil)
			return
		}

		sanitized := make([]*models.Quiz, len(quizzes))
		for i := range quizzes {
			sanitized[i] = sanitizeQuiz(&quizzes[i])
		}
		c.JSON(http.StatusOK, gin.H{"quizzes": sanitized})
	}
}

func getQuiz(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		quiz, err := deps.Store.GetQuiz(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			utils.RespondWithNotFound(c, "Quiz not found")
			return
		}
		c.JSON(http.StatusOK, sanitizeQuiz(quiz))
	}
}

type submitQuizRequest struct {
	Answers map[int]string `json:"answers" binding:"required"`
}

func submitQuiz(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req submitQuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "answers map is required", nil)
			return
		}

		result, err := deps.Quizzes.Submit(c.Request.Context(), userID, c.Param("id"), req.Answers)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to grade submission", nil)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// sanitizeQuiz strips answers and explanations so clients cannot read them
// before submitting. Graded quizzes keep both for review.
func sanitizeQuiz(quiz *models.Quiz) *models.Quiz {
	if quiz.TakenAt != nil {
		return quiz
	}

	clone := *quiz
	clone.Questions = make([]models.QuizQuestion, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Answer = ""
		q.Explanation = ""
		clone.Questions[i] = q
	}
	return &clone
}
