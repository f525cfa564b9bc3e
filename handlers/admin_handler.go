package handlers

import (
	"context"
	"errors"
	"fmt"

	"surveybot/logger"
	"surveybot/models"
	"surveybot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AdminHandler serves the operator reporting flow: aggregated results as
// one pie chart plus a text summary per question.
type AdminHandler struct {
	bot     *tgbotapi.BotAPI
	surveys *services.SurveyService
	reports *services.ReportService
	charts  *services.ChartService
	catalog models.Catalog
	log     *logger.Logger
}

func NewAdminHandler(
	bot *tgbotapi.BotAPI,
	surveys *services.SurveyService,
	reports *services.ReportService,
	charts *services.ChartService,
	catalog models.Catalog,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		bot:     bot,
		surveys: surveys,
		reports: reports,
		charts:  charts,
		catalog: catalog,
		log:     log.With("component", "admin_handler"),
	}
}

// ShowAllResults sends a chart and result summary for every question in
// catalog order. The allow-list is re-checked here: admin callbacks can be
// forged, the menu button is not a capability.
func (h *AdminHandler) ShowAllResults(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	if !h.surveys.IsAdmin(userID) {
		h.log.Warn("non-operator requested results", "user_id", userID)
		h.sendText(chatID, "You do not have access to this function.")
		return
	}

	h.log.Info("operator requested all results", "user_id", userID)
	h.sendText(chatID, "Generating charts for all questions...")

	ctx := context.Background()
	for i := range h.catalog {
		q := &h.catalog[i]
		if !q.Answerable() {
			continue
		}
		h.sendQuestionResults(ctx, chatID, q)
	}
}

func (h *AdminHandler) sendQuestionResults(ctx context.Context, chatID int64, q *models.Question) {
	tally, err := h.reports.Tally(ctx, q.QuestionID)
	if err != nil {
		if errors.Is(err, services.ErrNoData) {
			h.sendText(chatID, fmt.Sprintf("No answers recorded yet for question %d.", q.QuestionID))
			return
		}
		h.log.Error("failed to tally question", "question_id", q.QuestionID, "error", err)
		h.sendText(chatID, fmt.Sprintf("Could not build results for question %d.", q.QuestionID))
		return
	}

	img, err := h.charts.RenderPie(tally)
	if err != nil {
		h.log.Error("failed to render chart", "question_id", q.QuestionID, "error", err)
		// Chart is presentation only; the text summary still goes out.
		h.sendText(chatID, h.reports.ResultsText(tally))
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("question_%d.png", q.QuestionID),
		Bytes: img,
	})
	if _, err := h.bot.Send(photo); err != nil {
		h.log.Error("failed to send chart", "question_id", q.QuestionID, "error", err)
	}

	h.sendText(chatID, h.reports.ResultsText(tally))
}

func (h *AdminHandler) sendText(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
