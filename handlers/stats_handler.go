package handlers

import (
	"net/http"

	"surveybot/logger"
	"surveybot/services"

	"github.com/gin-gonic/gin"
)

// StatsHandler exposes participation counters on the ops HTTP server.
type StatsHandler struct {
	answers *services.AnswerService
	store   *services.SessionStore
	log     *logger.Logger
}

func NewStatsHandler(answers *services.AnswerService, store *services.SessionStore, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		answers: answers,
		store:   store,
		log:     log.With("component", "stats_handler"),
	}
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.answers.Stats()
	if err != nil {
		h.log.Error("failed to collect stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":       stats.TotalUsers,
		"completed_surveys": stats.CompletedSurveys,
		"total_answers":     stats.TotalAnswers,
		"completion_rate":   stats.CompletionRate,
		"active_sessions":   h.store.Len(),
	})
}
