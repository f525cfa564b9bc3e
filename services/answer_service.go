package services

import (
	"fmt"
	"time"

	"surveybot/logger"
	"surveybot/models"

	"gorm.io/gorm"
)

// AnswerSeparator joins multiple selections into one answer_text value.
// The tally splits on the same separator.
const AnswerSeparator = " | "

// AnswerService is the durable side of the survey: user summary rows and
// one answer row per (user, question) pair actually answered.
type AnswerService struct {
	db      *gorm.DB
	catalog models.Catalog
	log     *logger.Logger
}

func NewAnswerService(db *gorm.DB, catalog models.Catalog, log *logger.Logger) *AnswerService {
	return &AnswerService{
		db:      db,
		catalog: catalog,
		log:     log.With("component", "answer_service"),
	}
}

// MarkStarted records the user summary row with a start timestamp. Re-runs
// keep the original start time.
func (s *AnswerService) MarkStarted(userID int64) error {
	var user models.User
	err := s.db.Where("user_id = ?", userID).First(&user).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}

	user = models.User{UserID: userID, StartTime: time.Now()}
	if err := s.db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create user %d: %w", userID, err)
	}
	return nil
}

// SaveAll writes a completed session's answer map and marks the user's
// summary record completed with an end timestamp. Questions without an
// entry in the map are simply not written.
func (s *AnswerService) SaveAll(userID int64, answers map[string]*models.PartialAnswer) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()

	var user models.User
	err := tx.Where("user_id = ?", userID).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{UserID: userID, StartTime: now}
		err = tx.Create(&user).Error
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	// Walk the catalog, not the map, so rows land in question order.
	saved := 0
	for i := range s.catalog {
		q := &s.catalog[i]
		pa, ok := answers[q.Question]
		if !ok {
			continue
		}

		answer := models.Answer{
			UserID:       userID,
			QuestionID:   q.QuestionID,
			AnswerText:   pa.Joined(AnswerSeparator),
			CustomAnswer: pa.Custom(),
			Timestamp:    now,
		}
		if err := tx.Create(&answer).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save answer for question %d: %w", q.QuestionID, err)
		}
		saved++
	}

	user.CompletedSurvey = true
	user.EndTime = &now
	if err := tx.Save(&user).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to mark user %d completed: %w", userID, err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit answers for user %d: %w", userID, err)
	}

	s.log.Info("answers persisted", "user_id", userID, "rows", saved)
	return nil
}

// SurveyStats summarizes participation for the ops endpoint.
type SurveyStats struct {
	TotalUsers       int64   `json:"total_users"`
	CompletedSurveys int64   `json:"completed_surveys"`
	TotalAnswers     int64   `json:"total_answers"`
	CompletionRate   float64 `json:"completion_rate"`
}

func (s *AnswerService) Stats() (*SurveyStats, error) {
	stats := &SurveyStats{}

	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.Model(&models.User{}).Where("completed_survey = ?", true).Count(&stats.CompletedSurveys).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed surveys: %w", err)
	}
	if err := s.db.Model(&models.Answer{}).Count(&stats.TotalAnswers).Error; err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}

	if stats.TotalUsers > 0 {
		stats.CompletionRate = float64(stats.CompletedSurveys) / float64(stats.TotalUsers) * 100
	}
	return stats, nil
}
