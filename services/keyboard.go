package services

import (
	"strings"

	"surveybot/models"
)

// labelWrapWidth is the soft wrap width for button labels. Longer labels
// overflow the inline keyboard rendering surface.
const labelWrapWidth = 20

const (
	selectedMarker = "✔️ "
	customLabel    = "Other (type your own answer)"
	doneLabel      = "✅ Done"
	menuResults    = "Show survey results"
	menuTakeSurvey = "Take the survey"
)

// Choice is one selectable affordance of a rendered prompt. Label is the
// display text, Data the packed callback string.
type Choice struct {
	Label string
	Data  string
}

// ComposeKeyboard derives the choice rows for a question from its current
// partial answer. It is a pure function: same question and partial answer,
// same keyboard.
//
// Blank options are skipped at render time but keep their original index in
// the callback data, so the engine's index lookups stay stable.
func ComposeKeyboard(q *models.Question, pa *models.PartialAnswer) [][]Choice {
	var rows [][]Choice

	for idx, answer := range q.Answers {
		if strings.TrimSpace(answer) == "" {
			continue
		}

		label := answer
		var data string
		if q.MultipleChoice {
			if pa != nil && pa.HasSelected(answer) {
				label = selectedMarker + label
			}
			data = models.AnswerCallback{Action: models.ActionToggle, QuestionID: q.QuestionID, AnswerIdx: idx}.Pack()
		} else {
			data = models.AnswerCallback{Action: models.ActionSelect, QuestionID: q.QuestionID, AnswerIdx: idx}.Pack()
		}

		rows = append(rows, []Choice{{Label: wrapLabel(label, labelWrapWidth), Data: data}})
	}

	if q.TextResponse {
		rows = append(rows, []Choice{{
			Label: customLabel,
			Data:  models.AnswerCallback{Action: models.ActionCustom, QuestionID: q.QuestionID, AnswerIdx: -1}.Pack(),
		}})
	}

	if q.MultipleChoice {
		rows = append(rows, []Choice{{
			Label: doneLabel,
			Data:  models.AnswerCallback{Action: models.ActionDone, QuestionID: q.QuestionID, AnswerIdx: -1}.Pack(),
		}})
	}

	return rows
}

// AdminMenuKeyboard is the operator menu shown instead of the first
// question when an allow-listed user sends /start.
func AdminMenuKeyboard() [][]Choice {
	return [][]Choice{
		{{Label: menuResults, Data: models.AdminCallback{Action: models.AdminActionAllResults}.Pack()}},
		{{Label: menuTakeSurvey, Data: models.AdminCallback{Action: models.AdminActionStartSurvey}.Pack()}},
	}
}

// wrapLabel soft-wraps text at word boundaries so no line exceeds width.
// Words longer than the width are kept whole.
func wrapLabel(text string, width int) string {
	if len([]rune(text)) <= width {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len([]rune(line))+1+len([]rune(word)) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	lines = append(lines, line)

	return strings.Join(lines, "\n")
}
