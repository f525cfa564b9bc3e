package services

import (
	"testing"
	"time"

	"surveybot/logger"
	"surveybot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

type savedCall struct {
	userID  int64
	answers map[string]*models.PartialAnswer
}

type fakeSink struct {
	started []int64
	saves   []savedCall
	saveErr error
}

func (f *fakeSink) MarkStarted(userID int64) error {
	f.started = append(f.started, userID)
	return nil
}

func (f *fakeSink) SaveAll(userID int64, answers map[string]*models.PartialAnswer) error {
	f.saves = append(f.saves, savedCall{userID: userID, answers: answers})
	return f.saveErr
}

// threeQuestionCatalog is the reference catalog: a single-choice question,
// a multiple-choice question and a free-text-only question.
func threeQuestionCatalog() models.Catalog {
	return models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"A", "B"}},
		{QuestionID: 2, Question: "Q1", Answers: []string{"X", "Y"}, MultipleChoice: true},
		{QuestionID: 3, Question: "Q2", TextResponse: true},
	}
}

func newTestService(catalog models.Catalog, rule models.BranchRule, admins ...int64) (*SurveyService, *SessionStore, *fakeSink) {
	log := testLogger()
	store := NewSessionStore(time.Hour, time.Minute, log)
	sink := &fakeSink{}
	svc := NewSurveyService(catalog, rule, store, sink, admins, log)
	return svc, store, sink
}

func TestBeginStartsAtFirstQuestion(t *testing.T) {
	svc, store, sink := newTestService(threeQuestionCatalog(), models.BranchRule{})

	prompt, err := svc.Begin(7)
	require.NoError(t, err)

	assert.Equal(t, PromptQuestion, prompt.Kind)
	assert.Equal(t, 1, prompt.Question.QuestionID)
	assert.NotEmpty(t, prompt.Keyboard)
	assert.Equal(t, []int64{7}, sink.started)

	sess, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, models.StateAnswering, sess.State)
	assert.Equal(t, 0, sess.Current)
}

func TestBeginShowsAdminMenuForOperators(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{}, 42)

	prompt, err := svc.Begin(42)
	require.NoError(t, err)

	assert.Equal(t, PromptAdminMenu, prompt.Kind)
	assert.NotEmpty(t, prompt.Keyboard)
	_, ok := store.Get(42)
	assert.False(t, ok, "admin menu must not create a session")
}

func TestSelectOptionAdvancesByOne(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)

	prompt, err := svc.SelectOption(7, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, PromptQuestion, prompt.Kind)
	assert.Equal(t, 2, prompt.Question.QuestionID)

	sess, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, 1, sess.Current)
	assert.Equal(t, []string{"A"}, sess.Answers["Q0"].Selected())
}

func TestBranchRule(t *testing.T) {
	catalog := models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"A", "B"}},
		{QuestionID: 2, Question: "Q1 pets", Answers: []string{"Yes", "No"}},
		{QuestionID: 3, Question: "Q2 follow-up", Answers: []string{"A"}},
		{QuestionID: 4, Question: "Q3 follow-up", Answers: []string{"A"}},
		{QuestionID: 5, Question: "Q4 follow-up", Answers: []string{"A"}},
		{QuestionID: 6, Question: "Q5 after run", Answers: []string{"A"}},
	}
	rule := models.BranchRule{GatingIndex: 1, TriggerOption: "No", SkipToIndex: 5}

	t.Run("trigger option skips the follow-up run", func(t *testing.T) {
		svc, store, _ := newTestService(catalog, rule)
		_, err := svc.Begin(7)
		require.NoError(t, err)
		_, err = svc.SelectOption(7, 1, 0)
		require.NoError(t, err)

		prompt, err := svc.SelectOption(7, 2, 1) // "No"
		require.NoError(t, err)

		assert.Equal(t, 6, prompt.Question.QuestionID)
		sess, _ := store.Get(7)
		assert.Equal(t, 5, sess.Current)
	})

	t.Run("other options enter the run normally", func(t *testing.T) {
		svc, store, _ := newTestService(catalog, rule)
		_, err := svc.Begin(7)
		require.NoError(t, err)
		_, err = svc.SelectOption(7, 1, 0)
		require.NoError(t, err)

		prompt, err := svc.SelectOption(7, 2, 0) // "Yes"
		require.NoError(t, err)

		assert.Equal(t, 3, prompt.Question.QuestionID)
		sess, _ := store.Get(7)
		assert.Equal(t, 2, sess.Current)
	})

	t.Run("rule never fires on multiple-choice confirm", func(t *testing.T) {
		multiCatalog := models.Catalog{
			{QuestionID: 1, Question: "M0", Answers: []string{"No", "Yes"}, MultipleChoice: true},
			{QuestionID: 2, Question: "M1", Answers: []string{"A"}},
			{QuestionID: 3, Question: "M2", Answers: []string{"A"}},
		}
		svc, store, _ := newTestService(multiCatalog, models.BranchRule{GatingIndex: 0, TriggerOption: "No", SkipToIndex: 2})
		_, err := svc.Begin(7)
		require.NoError(t, err)
		_, err = svc.ToggleOption(7, 1, 0) // select "No"
		require.NoError(t, err)

		prompt, err := svc.ConfirmDone(7, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, prompt.Question.QuestionID)
		sess, _ := store.Get(7)
		assert.Equal(t, 1, sess.Current)
	})
}

func TestToggleTwiceIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)
	_, err = svc.SelectOption(7, 1, 0)
	require.NoError(t, err)

	prompt, err := svc.ToggleOption(7, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, PromptRerender, prompt.Kind)

	sess, _ := store.Get(7)
	assert.Equal(t, []string{"X"}, sess.Answers["Q1"].Selected())

	_, err = svc.ToggleOption(7, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, sess.Answers["Q1"].Selected())
	assert.Equal(t, 1, sess.Current, "toggling never moves the cursor")
}

func TestConfirmDoneWithoutTogglesAdvances(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)
	_, err = svc.SelectOption(7, 1, 0)
	require.NoError(t, err)

	prompt, err := svc.ConfirmDone(7, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, prompt.Question.QuestionID)
	sess, _ := store.Get(7)
	assert.Equal(t, 2, sess.Current)
	assert.NotContains(t, sess.Answers, "Q1", "no selection means no answer entry")
}

func TestUnanswerableQuestionIsAutoSkipped(t *testing.T) {
	catalog := models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"A"}},
		{QuestionID: 2, Question: "broken", Answers: []string{"", "  "}},
		{QuestionID: 3, Question: "Q2", Answers: []string{"B"}},
	}
	svc, store, _ := newTestService(catalog, models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)

	prompt, err := svc.SelectOption(7, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, prompt.Question.QuestionID, "cursor passes through the unanswerable question")
	sess, _ := store.Get(7)
	assert.Equal(t, 2, sess.Current)
}

func TestFullRunPersistsOnceAndRemovesSession(t *testing.T) {
	svc, store, sink := newTestService(threeQuestionCatalog(), models.BranchRule{})

	_, err := svc.Begin(7)
	require.NoError(t, err)
	_, err = svc.SelectOption(7, 1, 0) // Q0: "A"
	require.NoError(t, err)
	_, err = svc.ToggleOption(7, 2, 0) // Q1: "X"
	require.NoError(t, err)
	_, err = svc.ToggleOption(7, 2, 1) // Q1: "Y"
	require.NoError(t, err)
	_, err = svc.ConfirmDone(7, 2)
	require.NoError(t, err)

	prompt, err := svc.SubmitCustomText(7, "hello") // Q2
	require.NoError(t, err)

	assert.Equal(t, PromptFinished, prompt.Kind)
	assert.NotEmpty(t, prompt.Text)

	require.Len(t, sink.saves, 1, "exactly one persistence call")
	saved := sink.saves[0]
	assert.Equal(t, int64(7), saved.userID)
	assert.Equal(t, []string{"A"}, saved.answers["Q0"].Selected())
	assert.Equal(t, "X | Y", saved.answers["Q1"].Joined(AnswerSeparator))
	assert.Equal(t, "hello", saved.answers["Q2"].Custom())

	assert.Equal(t, 0, store.Len(), "session removed after completion")
}

func TestPersistenceFailureDoesNotReachUser(t *testing.T) {
	svc, store, sink := newTestService(models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"A"}},
	}, models.BranchRule{})
	sink.saveErr = assert.AnError

	_, err := svc.Begin(7)
	require.NoError(t, err)

	prompt, err := svc.SelectOption(7, 1, 0)
	require.NoError(t, err, "persistence failure is logged, not surfaced")
	assert.Equal(t, PromptFinished, prompt.Kind)
	assert.Equal(t, 0, store.Len())
}

func TestInvalidOptionIndexLeavesStateUnchanged(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)

	_, err = svc.SelectOption(7, 1, 5)
	assert.ErrorIs(t, err, ErrInvalidOptionIndex)

	sess, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, 0, sess.Current)
	assert.Empty(t, sess.Answers)
	assert.Equal(t, models.StateAnswering, sess.State)
}

func TestStaleButtonPressIsRejected(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)
	_, err = svc.SelectOption(7, 1, 0)
	require.NoError(t, err)

	// Double-tap on the already-advanced prompt.
	_, err = svc.SelectOption(7, 1, 1)
	assert.ErrorIs(t, err, ErrUnexpectedEvent)

	sess, _ := store.Get(7)
	assert.Equal(t, 1, sess.Current)
	assert.Equal(t, []string{"A"}, sess.Answers["Q0"].Selected())
}

func TestEventsRejectedWithoutSession(t *testing.T) {
	svc, _, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})

	_, err := svc.SelectOption(7, 1, 0)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.SubmitCustomText(7, "hi")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestToggleRejectedWhileAwaitingText(t *testing.T) {
	catalog := models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"X", "Y"}, MultipleChoice: true, TextResponse: true},
		{QuestionID: 2, Question: "Q1", Answers: []string{"A"}},
	}
	svc, _, _ := newTestService(catalog, models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)

	prompt, err := svc.RequestCustomText(7, 1)
	require.NoError(t, err)
	assert.Equal(t, PromptAwaitText, prompt.Kind)

	_, err = svc.ToggleOption(7, 1, 0)
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestCustomTextOnMultiChoiceKeepsSelections(t *testing.T) {
	catalog := models.Catalog{
		{QuestionID: 1, Question: "Q0", Answers: []string{"X", "Y"}, MultipleChoice: true, TextResponse: true},
		{QuestionID: 2, Question: "Q1", Answers: []string{"A"}},
	}
	svc, store, _ := newTestService(catalog, models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)

	_, err = svc.ToggleOption(7, 1, 0)
	require.NoError(t, err)
	_, err = svc.RequestCustomText(7, 1)
	require.NoError(t, err)

	prompt, err := svc.SubmitCustomText(7, "something else")
	require.NoError(t, err)

	assert.Equal(t, 2, prompt.Question.QuestionID, "custom text advances by exactly one")
	sess, _ := store.Get(7)
	assert.Equal(t, []string{"X"}, sess.Answers["Q0"].Selected())
	assert.Equal(t, "something else", sess.Answers["Q0"].Custom())
}

func TestFreeTextOnlyQuestionAwaitsMessage(t *testing.T) {
	catalog := models.Catalog{
		{QuestionID: 1, Question: "Q0", TextResponse: true},
		{QuestionID: 2, Question: "Q1", Answers: []string{"A"}},
	}
	svc, store, _ := newTestService(catalog, models.BranchRule{})

	prompt, err := svc.Begin(7)
	require.NoError(t, err)

	assert.Equal(t, PromptQuestion, prompt.Kind)
	assert.Empty(t, prompt.Keyboard)

	sess, _ := store.Get(7)
	assert.Equal(t, models.StateAwaitingCustomText, sess.State)
}

func TestRestartResetsProgress(t *testing.T) {
	svc, store, _ := newTestService(threeQuestionCatalog(), models.BranchRule{})
	_, err := svc.Begin(7)
	require.NoError(t, err)
	_, err = svc.SelectOption(7, 1, 1)
	require.NoError(t, err)

	prompt, err := svc.Begin(7)
	require.NoError(t, err)

	assert.Equal(t, 1, prompt.Question.QuestionID)
	sess, _ := store.Get(7)
	assert.Equal(t, 0, sess.Current)
	assert.Empty(t, sess.Answers)
}
