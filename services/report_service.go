package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"surveybot/logger"
	"surveybot/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNoData marks a question nobody has answered yet. Callers render an
// explicit "no data" notice instead of an empty chart.
var ErrNoData = errors.New("no answers recorded for question")

// AnswerCount is one tally entry: answer label and how often it was chosen.
type AnswerCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// QuestionTally is the aggregated result for one question, ordered by
// frequency (ties keep first-seen order).
type QuestionTally struct {
	Question *models.Question
	Counts   []AnswerCount
	Total    int
}

// ReportService reads persisted answers back out and tallies them. Tallies
// are cached in redis for a short TTL so an operator paging through all
// questions does not rescan the answers table for each chart.
type ReportService struct {
	db       *gorm.DB
	redis    *redis.Client
	catalog  models.Catalog
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewReportService(db *gorm.DB, rdb *redis.Client, catalog models.Catalog, cacheTTL time.Duration, log *logger.Logger) *ReportService {
	return &ReportService{
		db:       db,
		redis:    rdb,
		catalog:  catalog,
		cacheTTL: cacheTTL,
		log:      log.With("component", "report_service"),
	}
}

// Tally counts answer frequencies for one question. Multi-select answer
// strings are split on the fixed separator before counting.
func (s *ReportService) Tally(ctx context.Context, questionID int) (*QuestionTally, error) {
	q, ok := s.catalog.ByID(questionID)
	if !ok {
		return nil, fmt.Errorf("question %d is not in the catalog", questionID)
	}

	if counts, ok := s.cachedCounts(ctx, questionID); ok {
		return s.tallyFromCounts(q, counts)
	}

	var rows []models.Answer
	if err := s.db.Where("question_id = ?", questionID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch answers for question %d: %w", questionID, err)
	}

	counts := countAnswers(rows, q.MultipleChoice)
	s.storeCounts(ctx, questionID, counts)

	return s.tallyFromCounts(q, counts)
}

func (s *ReportService) tallyFromCounts(q *models.Question, counts []AnswerCount) (*QuestionTally, error) {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total == 0 {
		return nil, ErrNoData
	}
	return &QuestionTally{Question: q, Counts: counts, Total: total}, nil
}

// countAnswers builds the ordered frequency list from raw answer rows.
func countAnswers(rows []models.Answer, multi bool) []AnswerCount {
	counts := make(map[string]int)
	var order []string

	record := func(label string) {
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	for _, row := range rows {
		if multi {
			for _, part := range strings.Split(row.AnswerText, "|") {
				record(part)
			}
		} else {
			record(row.AnswerText)
		}
	}

	out := make([]AnswerCount, 0, len(order))
	for _, label := range order {
		out = append(out, AnswerCount{Label: label, Count: counts[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// ResultsText formats a tally as the plain-text summary sent alongside the
// chart: one line per answer with count and percentage.
func (s *ReportService) ResultsText(t *QuestionTally) string {
	var b strings.Builder
	b.WriteString("📊 Results:\n\n")
	for _, c := range t.Counts {
		pct := float64(c.Count) / float64(t.Total) * 100
		fmt.Fprintf(&b, "%s — %d answers (%.1f%%)\n", c.Label, c.Count, pct)
	}
	return b.String()
}

func (s *ReportService) cacheKey(questionID int) string {
	return fmt.Sprintf("tally:%d", questionID)
}

func (s *ReportService) cachedCounts(ctx context.Context, questionID int) ([]AnswerCount, bool) {
	if s.redis == nil {
		return nil, false
	}

	data, err := s.redis.Get(ctx, s.cacheKey(questionID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("failed to read tally cache", "question_id", questionID, "error", err)
		}
		return nil, false
	}

	var counts []AnswerCount
	if err := json.Unmarshal([]byte(data), &counts); err != nil {
		s.log.Warn("failed to decode cached tally", "question_id", questionID, "error", err)
		return nil, false
	}
	return counts, true
}

func (s *ReportService) storeCounts(ctx context.Context, questionID int, counts []AnswerCount) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(counts)
	if err != nil {
		s.log.Warn("failed to encode tally for cache", "question_id", questionID, "error", err)
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(questionID), data, s.cacheTTL).Err(); err != nil {
		s.log.Warn("failed to store tally cache", "question_id", questionID, "error", err)
	}
}
