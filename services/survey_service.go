package services

import (
	"errors"
	"strings"

	"surveybot/logger"
	"surveybot/models"
)

// Protocol violations. These are rejected locally with a benign notice and
// never mutate the session.
var (
	ErrNoSession          = errors.New("no active survey session")
	ErrUnexpectedEvent    = errors.New("event does not match the current survey state")
	ErrInvalidOptionIndex = errors.New("option index out of range")
)

const closingMessage = "🎉 Thank you for completing the survey!\n\n" +
	"This is only the beginning. We are not just building a store — we are " +
	"building a community where people decide together what gets made, how, " +
	"and for whom.\n\n" +
	"Join our news channel to follow the project and become part of it:\n" +
	"🔗 t.me/surveybot_news\n\n" +
	"Stronger together. 💛"

const customTextPrompt = "Type your answer:"

// AnswerSink is the persistence gateway consumed by the engine. The engine
// never reads persisted records back.
type AnswerSink interface {
	MarkStarted(userID int64) error
	SaveAll(userID int64, answers map[string]*models.PartialAnswer) error
}

// PromptKind tells the transport layer what to render.
type PromptKind int

const (
	// PromptQuestion shows a question: text, hint, optional image, keyboard.
	PromptQuestion PromptKind = iota
	// PromptRerender refreshes the current prompt's keyboard in place.
	PromptRerender
	// PromptAwaitText asks the user to type a free-text answer.
	PromptAwaitText
	// PromptFinished delivers the static closing message.
	PromptFinished
	// PromptAdminMenu shows the operator menu.
	PromptAdminMenu
)

// Prompt is an outbound render request. The engine computes it; the
// transport layer decides how to physically send it.
type Prompt struct {
	Kind     PromptKind
	Question *models.Question
	Text     string
	Keyboard [][]Choice
}

// SurveyService is the progression engine. It owns every session for the
// duration of one user's run, applies events against question metadata and
// drives the cursor deterministically. Operations for different users may
// interleave freely; the transport serializes events per user.
type SurveyService struct {
	catalog models.Catalog
	rule    models.BranchRule
	store   *SessionStore
	answers AnswerSink
	admins  map[int64]bool
	log     *logger.Logger
}

func NewSurveyService(
	catalog models.Catalog,
	rule models.BranchRule,
	store *SessionStore,
	answers AnswerSink,
	adminIDs []int64,
	log *logger.Logger,
) *SurveyService {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &SurveyService{
		catalog: catalog,
		rule:    rule,
		store:   store,
		answers: answers,
		admins:  admins,
		log:     log.With("component", "survey_service"),
	}
}

// IsAdmin reports whether the user is on the operator allow-list.
func (s *SurveyService) IsAdmin(userID int64) bool {
	return s.admins[userID]
}

// Begin handles a start event. Operators get the admin menu; everyone else
// gets a fresh session and the first prompt.
func (s *SurveyService) Begin(userID int64) (*Prompt, error) {
	if s.IsAdmin(userID) {
		s.log.Info("operator opened the admin menu", "user_id", userID)
		return &Prompt{
			Kind:     PromptAdminMenu,
			Text:     "Welcome, operator! Choose an option:",
			Keyboard: AdminMenuKeyboard(),
		}, nil
	}
	return s.StartSurvey(userID)
}

// StartSurvey resets the user's session and returns the first prompt.
// Also used when an operator starts the questionnaire from the menu.
func (s *SurveyService) StartSurvey(userID int64) (*Prompt, error) {
	sess := s.store.Reset(userID)
	s.log.Info("survey started", "user_id", userID)

	if err := s.answers.MarkStarted(userID); err != nil {
		// Durable start marker is best effort; the survey itself proceeds.
		s.log.Error("failed to record survey start", "user_id", userID, "error", err)
	}

	return s.advance(sess, 0)
}

// ToggleOption flips one option of the current multiple-choice question.
// The cursor does not move; the prompt's keyboard is recomposed in place.
func (s *SurveyService) ToggleOption(userID int64, questionID, answerIdx int) (*Prompt, error) {
	sess, q, err := s.currentQuestion(userID, questionID, models.StateAnswering)
	if err != nil {
		return nil, err
	}
	if !q.MultipleChoice {
		return nil, ErrUnexpectedEvent
	}

	option, err := s.optionAt(q, answerIdx)
	if err != nil {
		return nil, err
	}

	pa := sess.Answer(q)
	if err := pa.Toggle(option); err != nil {
		return nil, ErrUnexpectedEvent
	}
	s.log.Debug("option toggled", "user_id", userID, "question_id", q.QuestionID, "option", option)

	return &Prompt{Kind: PromptRerender, Question: q, Keyboard: ComposeKeyboard(q, pa)}, nil
}

// SelectOption records the sole selection of the current single-choice
// question, applies the branch rule and advances.
func (s *SurveyService) SelectOption(userID int64, questionID, answerIdx int) (*Prompt, error) {
	sess, q, err := s.currentQuestion(userID, questionID, models.StateAnswering)
	if err != nil {
		return nil, err
	}
	if q.MultipleChoice {
		return nil, ErrUnexpectedEvent
	}

	option, err := s.optionAt(q, answerIdx)
	if err != nil {
		return nil, err
	}

	pa := sess.Answer(q)
	if err := pa.Select(option); err != nil {
		return nil, ErrUnexpectedEvent
	}
	s.log.Info("option selected", "user_id", userID, "question_id", q.QuestionID, "option", option)

	next := sess.Current + 1
	if s.rule.Enabled() && sess.Current == s.rule.GatingIndex && option == s.rule.TriggerOption {
		next = s.rule.SkipToIndex
		s.log.Info("branch rule triggered",
			"user_id", userID, "gating_index", s.rule.GatingIndex, "skip_to", next)
	}

	return s.advance(sess, next)
}

// RequestCustomText switches the current question into free-text entry.
// No answer mutation happens yet.
func (s *SurveyService) RequestCustomText(userID int64, questionID int) (*Prompt, error) {
	sess, q, err := s.currentQuestion(userID, questionID, models.StateAnswering)
	if err != nil {
		return nil, err
	}
	if !q.TextResponse {
		return nil, ErrUnexpectedEvent
	}

	sess.State = models.StateAwaitingCustomText
	s.log.Debug("awaiting custom text", "user_id", userID, "question_id", q.QuestionID)

	return &Prompt{Kind: PromptAwaitText, Question: q, Text: customTextPrompt}, nil
}

// SubmitCustomText stores free text for the current question and advances
// the cursor by exactly one.
func (s *SurveyService) SubmitCustomText(userID int64, text string) (*Prompt, error) {
	sess, ok := s.store.Get(userID)
	if !ok {
		return nil, ErrNoSession
	}
	if sess.State != models.StateAwaitingCustomText || sess.Current >= len(s.catalog) {
		return nil, ErrUnexpectedEvent
	}

	q := &s.catalog[sess.Current]
	sess.Answer(q).SetCustom(text)
	s.log.Info("custom text submitted", "user_id", userID, "question_id", q.QuestionID)

	return s.advance(sess, sess.Current+1)
}

// ConfirmDone completes a multiple-choice question and advances by one.
// The branch rule never fires here.
func (s *SurveyService) ConfirmDone(userID int64, questionID int) (*Prompt, error) {
	sess, q, err := s.currentQuestion(userID, questionID, models.StateAnswering)
	if err != nil {
		return nil, err
	}
	if !q.MultipleChoice {
		return nil, ErrUnexpectedEvent
	}

	s.log.Debug("multiple choice confirmed", "user_id", userID, "question_id", q.QuestionID)
	return s.advance(sess, sess.Current+1)
}

// advance moves the cursor to index, auto-skipping unanswerable questions,
// and either composes the next prompt or completes the survey. Completion
// hands the full answer map to the persistence gateway exactly once and
// removes the session from memory.
func (s *SurveyService) advance(sess *models.SurveySession, index int) (*Prompt, error) {
	for index < len(s.catalog) && !s.catalog[index].Answerable() {
		s.log.Warn("question has no options and no free-text, skipping",
			"question_id", s.catalog[index].QuestionID, "index", index)
		index++
	}

	if index >= len(s.catalog) {
		sess.State = models.StateCompleted
		answers := sess.Answers
		s.store.Delete(sess.UserID)
		s.log.Info("survey completed", "user_id", sess.UserID, "answered", len(answers))

		if err := s.answers.SaveAll(sess.UserID, answers); err != nil {
			// At-most-once: no retry, the user already got the closing
			// message from their point of view. Logged as an operational
			// signal only.
			s.log.Error("failed to persist survey answers", "user_id", sess.UserID, "error", err)
		}

		return &Prompt{Kind: PromptFinished, Text: closingMessage}, nil
	}

	sess.Current = index
	q := &s.catalog[index]
	text := q.Question
	if strings.TrimSpace(q.Hint) != "" {
		text += "\n\n" + q.Hint
	}

	if q.HasOptions() {
		sess.State = models.StateAnswering
		return &Prompt{
			Kind:     PromptQuestion,
			Question: q,
			Text:     text,
			Keyboard: ComposeKeyboard(q, sess.Answers[q.Question]),
		}, nil
	}

	// Free-text only: no keyboard, the next message is the answer.
	sess.State = models.StateAwaitingCustomText
	return &Prompt{Kind: PromptQuestion, Question: q, Text: text}, nil
}

// currentQuestion loads the session and validates that the event targets
// the current question in the expected state. A mismatched question id is a
// press on a stale rendering and is rejected like any unexpected event.
func (s *SurveyService) currentQuestion(userID int64, questionID int, want models.SessionState) (*models.SurveySession, *models.Question, error) {
	sess, ok := s.store.Get(userID)
	if !ok {
		return nil, nil, ErrNoSession
	}
	if sess.State != want || sess.Current >= len(s.catalog) {
		return nil, nil, ErrUnexpectedEvent
	}
	q := &s.catalog[sess.Current]
	if q.QuestionID != questionID {
		return nil, nil, ErrUnexpectedEvent
	}
	return sess, q, nil
}

func (s *SurveyService) optionAt(q *models.Question, answerIdx int) (string, error) {
	if answerIdx < 0 || answerIdx >= len(q.Answers) {
		return "", ErrInvalidOptionIndex
	}
	option := q.Answers[answerIdx]
	if strings.TrimSpace(option) == "" {
		return "", ErrInvalidOptionIndex
	}
	return option, nil
}
