package routes

import (
	"net/http"

	"surveybot/handlers"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the ops HTTP surface. The survey itself runs over
// Telegram; this server only exists for health checks and participation
// stats.
func SetupRoutes(router *gin.Engine, statsHandler *handlers.StatsHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/stats", statsHandler.GetStats)
	}
}
