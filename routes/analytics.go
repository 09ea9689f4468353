package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"studyai-platform/middleware"
	"studyai-platform/utils"
)

// SetupAnalyticsRoutes registers progress overview, workbook export and
// audit trail endpoints
func SetupAnalyticsRoutes(router *gin.Engine, deps *Deps, auth *middleware.AuthMiddleware) {
	group := router.Group("/api/analytics")
	group.Use(auth.RequireAuth())

	group.GET("/overview", getOverview(deps))
	group.GET("/export", exportWorkbook(deps))
	group.GET("/audit", listAuditLogs(deps))
	group.GET("/audit/verify", verifyAuditChain(deps))
}

func getOverview(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		overview, err := deps.Analytics.Overview(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to compute overview", nil)
			return
		}
		c.JSON(http.StatusOK, overview)
	}
}

func exportWorkbook(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		buf, err := deps.Export.AnalyticsWorkbook(c.Request.Context(), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build workbook", nil)
			return
		}

		filename := fmt.Sprintf("study-analytics-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())
	}
}

func listAuditLogs(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
		if pageSize < 1 || pageSize > 200 {
			pageSize = 50
		}

		filter := bson.M{"user_id": userID}
		if resource := c.Query("resource"); resource != "" {
			filter["resource"] = resource
		}

		events, total, err := deps.Audit.QueryAuditLogs(filter, page, pageSize)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to query audit logs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"events":    events,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	}
}

func verifyAuditChain(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		intact, err := deps.Audit.VerifyChain(userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to verify audit chain", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"intact": intact})
	}
}
