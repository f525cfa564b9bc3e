package models

import (
	"errors"
	"strings"
	"time"
)

// SessionState is the progression engine's state for one user.
type SessionState int

const (
	StateNotStarted SessionState = iota
	StateAnswering
	StateAwaitingCustomText
	StateCompleted
)

func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAnswering:
		return "answering"
	case StateAwaitingCustomText:
		return "awaiting_custom_text"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// SurveySession is the volatile per-user progress record. It is owned
// exclusively by the progression engine for the duration of one run and
// removed from memory the moment the survey completes.
type SurveySession struct {
	UserID    int64
	State     SessionState
	Current   int // zero-based cursor into the catalog
	Answers   map[string]*PartialAnswer
	StartedAt time.Time
	TouchedAt time.Time
}

func NewSurveySession(userID int64) *SurveySession {
	now := time.Now()
	return &SurveySession{
		UserID:    userID,
		State:     StateNotStarted,
		Current:   0,
		Answers:   make(map[string]*PartialAnswer),
		StartedAt: now,
		TouchedAt: now,
	}
}

// Answer returns the partial answer for the question, creating it with the
// variant matching the question's multiple_choice flag if absent.
func (s *SurveySession) Answer(q *Question) *PartialAnswer {
	pa, ok := s.Answers[q.Question]
	if !ok {
		pa = NewPartialAnswer(q)
		s.Answers[q.Question] = pa
	}
	return pa
}

var (
	ErrNotMultiChoice  = errors.New("answer is not multiple-choice")
	ErrNotSingleChoice = errors.New("answer is not single-choice")
)

// PartialAnswer holds the in-progress answer value(s) for one question.
// The variant (single vs multiple choice) is fixed at construction from the
// question's flag; mutations for the wrong variant are rejected instead of
// being trusted at every access site.
type PartialAnswer struct {
	multi    bool
	selected []string
	custom   string
}

func NewPartialAnswer(q *Question) *PartialAnswer {
	return &PartialAnswer{multi: q.MultipleChoice}
}

func (p *PartialAnswer) Multi() bool { return p.multi }

// Selected returns the chosen options in insertion order. For the
// single-choice variant this is at most one element.
func (p *PartialAnswer) Selected() []string { return p.selected }

func (p *PartialAnswer) Custom() string { return p.custom }

func (p *PartialAnswer) HasSelected(option string) bool {
	for _, s := range p.selected {
		if s == option {
			return true
		}
	}
	return false
}

// Toggle adds the option if absent and removes it if present.
// Valid only for the multiple-choice variant.
func (p *PartialAnswer) Toggle(option string) error {
	if !p.multi {
		return ErrNotMultiChoice
	}
	for i, s := range p.selected {
		if s == option {
			p.selected = append(p.selected[:i], p.selected[i+1:]...)
			return nil
		}
	}
	p.selected = append(p.selected, option)
	return nil
}

// Select records the option as the sole selection, discarding any prior
// custom text. Valid only for the single-choice variant.
func (p *PartialAnswer) Select(option string) error {
	if p.multi {
		return ErrNotSingleChoice
	}
	p.selected = []string{option}
	p.custom = ""
	return nil
}

func (p *PartialAnswer) SetCustom(text string) {
	p.custom = text
}

// Joined renders the selection(s) as a single string using the given
// separator. Used by the persistence gateway.
func (p *PartialAnswer) Joined(sep string) string {
	return strings.Join(p.selected, sep)
}
