package models

import (
	"time"
)

// User is the durable summary record for one survey participant.
type User struct {
	UserID          int64      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	CompletedSurvey bool       `json:"completed_survey" gorm:"not null;default:false"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`

	// Relationships
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:UserID;references:UserID"`
}
