package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data is the compact string carried by inline keyboard buttons.
// Survey buttons pack as "ans:<action>:<question_id>[:<answer_idx>]",
// admin buttons as "admin:<action>". Telegram caps callback data at 64
// bytes, so the format stays terse.

const (
	CallbackPrefixAnswer = "ans"
	CallbackPrefixAdmin  = "admin"
)

// Survey answer actions.
const (
	ActionToggle = "toggle"
	ActionSelect = "select"
	ActionCustom = "custom"
	ActionDone   = "done"
)

// Admin actions.
const (
	AdminActionAllResults  = "all_results"
	AdminActionStartSurvey = "start_survey"
)

// AnswerCallback addresses one affordance of one question. AnswerIdx is -1
// for actions that do not reference an option (custom, done).
type AnswerCallback struct {
	Action     string
	QuestionID int
	AnswerIdx  int
}

func (c AnswerCallback) Pack() string {
	if c.AnswerIdx < 0 {
		return fmt.Sprintf("%s:%s:%d", CallbackPrefixAnswer, c.Action, c.QuestionID)
	}
	return fmt.Sprintf("%s:%s:%d:%d", CallbackPrefixAnswer, c.Action, c.QuestionID, c.AnswerIdx)
}

func ParseAnswerCallback(data string) (AnswerCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != CallbackPrefixAnswer {
		return AnswerCallback{}, fmt.Errorf("malformed answer callback %q", data)
	}

	switch parts[1] {
	case ActionToggle, ActionSelect, ActionCustom, ActionDone:
	default:
		return AnswerCallback{}, fmt.Errorf("unknown answer action %q", parts[1])
	}

	questionID, err := strconv.Atoi(parts[2])
	if err != nil {
		return AnswerCallback{}, fmt.Errorf("malformed question id in callback %q", data)
	}

	answerIdx := -1
	if len(parts) == 4 {
		answerIdx, err = strconv.Atoi(parts[3])
		if err != nil || answerIdx < 0 {
			return AnswerCallback{}, fmt.Errorf("malformed answer index in callback %q", data)
		}
	}

	return AnswerCallback{Action: parts[1], QuestionID: questionID, AnswerIdx: answerIdx}, nil
}

// AdminCallback addresses an operator menu action.
type AdminCallback struct {
	Action string
}

func (c AdminCallback) Pack() string {
	return fmt.Sprintf("%s:%s", CallbackPrefixAdmin, c.Action)
}

func ParseAdminCallback(data string) (AdminCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 || parts[0] != CallbackPrefixAdmin {
		return AdminCallback{}, fmt.Errorf("malformed admin callback %q", data)
	}
	switch parts[1] {
	case AdminActionAllResults, AdminActionStartSurvey:
	default:
		return AdminCallback{}, fmt.Errorf("unknown admin action %q", parts[1])
	}
	return AdminCallback{Action: parts[1]}, nil
}
