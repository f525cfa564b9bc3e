package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"surveybot/logger"
	"surveybot/models"
	"surveybot/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const controlsNotice = "Please use the survey buttons, or send /start to begin the survey."

// updateShardCount is the number of dispatch workers. One user's updates
// always hash to the same shard, and each shard is drained by a single
// worker, so events for one user are handled in arrival order while users
// on different shards proceed concurrently.
const updateShardCount = 16

// shardQueueSize bounds how many updates a shard buffers before the poll
// loop blocks on it.
const shardQueueSize = 32

// SurveyHandler is the Telegram transport for the survey flow. It turns
// updates into engine events and renders the engine's prompts back out as
// messages, photos and inline keyboards.
type SurveyHandler struct {
	bot       *tgbotapi.BotAPI
	surveys   *services.SurveyService
	admin     *AdminHandler
	imagesDir string
	log       *logger.Logger

	shards [updateShardCount]chan tgbotapi.Update
}

func NewSurveyHandler(
	bot *tgbotapi.BotAPI,
	surveys *services.SurveyService,
	admin *AdminHandler,
	imagesDir string,
	log *logger.Logger,
) *SurveyHandler {
	h := &SurveyHandler{
		bot:       bot,
		surveys:   surveys,
		admin:     admin,
		imagesDir: imagesDir,
		log:       log.With("component", "survey_handler"),
	}
	for i := range h.shards {
		h.shards[i] = make(chan tgbotapi.Update, shardQueueSize)
	}
	return h
}

// Run starts one worker goroutine per shard. Call once before dispatching
// updates.
func (h *SurveyHandler) Run() {
	for i := range h.shards {
		go h.worker(h.shards[i])
	}
}

// Dispatch routes an inbound update to its user's shard. Updates that
// carry no user are dropped.
func (h *SurveyHandler) Dispatch(update tgbotapi.Update) {
	userID, ok := updateUserID(update)
	if !ok {
		return
	}
	h.shards[shardIndex(userID)] <- update
}

func (h *SurveyHandler) worker(queue <-chan tgbotapi.Update) {
	for update := range queue {
		h.handleUpdate(update)
	}
}

func updateUserID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	}
	return 0, false
}

func shardIndex(userID int64) int {
	return int(uint64(userID) % updateShardCount)
}

// handleUpdate processes one inbound update. A panic while handling one
// event must not take down the shard worker.
func (h *SurveyHandler) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		h.ack(cq)
		if cq.Message == nil {
			return
		}

		if strings.HasPrefix(cq.Data, models.CallbackPrefixAdmin+":") {
			h.handleAdminCallback(cq)
			return
		}
		h.handleAnswerCallback(cq)

	case update.Message != nil:
		msg := update.Message
		if msg.IsCommand() {
			h.handleCommand(msg)
			return
		}
		h.handleText(msg)
	}
}

func (h *SurveyHandler) handleCommand(msg *tgbotapi.Message) {
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		h.log.Info("start command", "user_id", userID, "username", msg.From.UserName)
		prompt, err := h.surveys.Begin(userID)
		if err != nil {
			h.log.Error("failed to begin survey", "user_id", userID, "error", err)
			return
		}
		h.renderPrompt(msg.Chat.ID, prompt, nil)
	default:
		h.sendText(msg.Chat.ID, controlsNotice)
	}
}

// handleText feeds a plain message into the engine as free-text input.
// Anything the current state does not expect gets the benign notice.
func (h *SurveyHandler) handleText(msg *tgbotapi.Message) {
	userID := msg.From.ID

	prompt, err := h.surveys.SubmitCustomText(userID, msg.Text)
	if err != nil {
		h.log.Warn("unexpected message", "user_id", userID, "error", err)
		h.sendText(msg.Chat.ID, controlsNotice)
		return
	}
	h.renderPrompt(msg.Chat.ID, prompt, nil)
}

func (h *SurveyHandler) handleAnswerCallback(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	cb, err := models.ParseAnswerCallback(cq.Data)
	if err != nil {
		h.log.Warn("malformed callback", "user_id", userID, "data", cq.Data, "error", err)
		h.sendText(chatID, controlsNotice)
		return
	}

	var prompt *services.Prompt
	switch cb.Action {
	case models.ActionToggle:
		prompt, err = h.surveys.ToggleOption(userID, cb.QuestionID, cb.AnswerIdx)
	case models.ActionSelect:
		prompt, err = h.surveys.SelectOption(userID, cb.QuestionID, cb.AnswerIdx)
	case models.ActionCustom:
		prompt, err = h.surveys.RequestCustomText(userID, cb.QuestionID)
	case models.ActionDone:
		prompt, err = h.surveys.ConfirmDone(userID, cb.QuestionID)
	}

	if err != nil {
		// Protocol violations are contained: state is untouched, the user
		// gets a nudge back to the provided controls.
		if errors.Is(err, services.ErrNoSession) ||
			errors.Is(err, services.ErrUnexpectedEvent) ||
			errors.Is(err, services.ErrInvalidOptionIndex) {
			h.log.Warn("rejected event", "user_id", userID, "data", cq.Data, "error", err)
			h.sendText(chatID, controlsNotice)
			return
		}
		h.log.Error("failed to handle callback", "user_id", userID, "data", cq.Data, "error", err)
		return
	}

	h.renderPrompt(chatID, prompt, cq)
}

func (h *SurveyHandler) handleAdminCallback(cq *tgbotapi.CallbackQuery) {
	cb, err := models.ParseAdminCallback(cq.Data)
	if err != nil {
		h.log.Warn("malformed admin callback", "user_id", cq.From.ID, "data", cq.Data, "error", err)
		return
	}

	switch cb.Action {
	case models.AdminActionStartSurvey:
		prompt, err := h.surveys.StartSurvey(cq.From.ID)
		if err != nil {
			h.log.Error("failed to start survey from menu", "user_id", cq.From.ID, "error", err)
			return
		}
		h.renderPrompt(cq.Message.Chat.ID, prompt, cq)
	case models.AdminActionAllResults:
		h.admin.ShowAllResults(cq)
	}
}

// renderPrompt turns an engine prompt into outbound sends. cq is the
// triggering callback query when there is one; in-place keyboard refreshes
// need its message reference.
func (h *SurveyHandler) renderPrompt(chatID int64, prompt *services.Prompt, cq *tgbotapi.CallbackQuery) {
	switch prompt.Kind {
	case services.PromptQuestion:
		h.sendQuestion(chatID, prompt)
	case services.PromptRerender:
		h.refreshKeyboard(cq, prompt)
	case services.PromptAwaitText, services.PromptFinished:
		h.sendText(chatID, prompt.Text)
	case services.PromptAdminMenu:
		msg := tgbotapi.NewMessage(chatID, prompt.Text)
		msg.ReplyMarkup = toInlineKeyboard(prompt.Keyboard)
		if _, err := h.bot.Send(msg); err != nil {
			h.log.Error("failed to send admin menu", "chat_id", chatID, "error", err)
		}
	}
}

// sendQuestion sends the prompt as a photo with caption when the question
// image exists, falling back to a text-only rendering when it does not or
// when the photo send fails. Rendering failures never affect survey state.
func (h *SurveyHandler) sendQuestion(chatID int64, prompt *services.Prompt) {
	imagePath := filepath.Join(h.imagesDir, fmt.Sprintf("%d.png", prompt.Question.QuestionID))

	if _, err := os.Stat(imagePath); err != nil {
		h.log.Warn("question image not found, sending text only",
			"question_id", prompt.Question.QuestionID, "path", imagePath)
	} else {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(imagePath))
		photo.Caption = prompt.Text
		if len(prompt.Keyboard) > 0 {
			photo.ReplyMarkup = toInlineKeyboard(prompt.Keyboard)
		}
		_, err := h.bot.Send(photo)
		if err == nil {
			return
		}
		h.log.Warn("photo send failed, falling back to text",
			"chat_id", chatID, "question_id", prompt.Question.QuestionID, "error", err)
	}

	msg := tgbotapi.NewMessage(chatID, prompt.Text)
	if len(prompt.Keyboard) > 0 {
		msg.ReplyMarkup = toInlineKeyboard(prompt.Keyboard)
	}
	if _, err := h.bot.Send(msg); err != nil {
		h.log.Error("failed to send question", "chat_id", chatID, "error", err)
	}
}

// refreshKeyboard recomposes the current prompt's choices in place after a
// multiple-choice toggle.
func (h *SurveyHandler) refreshKeyboard(cq *tgbotapi.CallbackQuery, prompt *services.Prompt) {
	if cq == nil || cq.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID, toInlineKeyboard(prompt.Keyboard))
	if _, err := h.bot.Request(edit); err != nil {
		h.log.Error("failed to refresh keyboard",
			"user_id", cq.From.ID, "question_id", prompt.Question.QuestionID, "error", err)
	}
}

func (h *SurveyHandler) sendText(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (h *SurveyHandler) ack(cq *tgbotapi.CallbackQuery) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.log.Warn("failed to ack callback", "error", err)
	}
}

func toInlineKeyboard(rows [][]services.Choice) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, choice := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(choice.Label, choice.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
