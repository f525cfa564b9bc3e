package models

import (
	"time"
)

// Answer is one durable row per (user, question) pair actually answered.
// For multiple-choice questions AnswerText holds the selections joined
// with the fixed separator.
type Answer struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"user_id" gorm:"not null;index"`
	QuestionID   int       `json:"question_id" gorm:"not null;index"`
	AnswerText   string    `json:"answer_text" gorm:"type:text"`
	CustomAnswer string    `json:"custom_answer" gorm:"type:text"`
	Timestamp    time.Time `json:"timestamp"`
}
