package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Question is one entry of the questionnaire catalog loaded from the
// questions file at startup. The catalog is read-only after loading.
type Question struct {
	QuestionID     int      `json:"question_id"`
	Question       string   `json:"question"`
	Hint           string   `json:"hint"`
	Answers        []string `json:"answers"`
	MultipleChoice bool     `json:"multiple_choice"`
	TextResponse   bool     `json:"text_response"`
}

// HasOptions reports whether the question has at least one non-empty
// answer option. Blank entries are kept in Answers so that option indexes
// stay stable, but they never render and never count here.
func (q *Question) HasOptions() bool {
	for _, a := range q.Answers {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

// Answerable reports whether the question can be answered at all.
// Unanswerable questions are auto-skipped by the progression engine.
func (q *Question) Answerable() bool {
	return q.HasOptions() || q.TextResponse
}

// Catalog is the ordered, immutable questionnaire.
type Catalog []Question

func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse questions file: %w", err)
	}
	return catalog, nil
}

// Validate checks catalog integrity. A failure here is fatal at startup.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}

	seen := make(map[int]int, len(c))
	for i, q := range c {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question at index %d has empty text", i)
		}
		if prev, ok := seen[q.QuestionID]; ok {
			return fmt.Errorf("duplicate question_id %d at indexes %d and %d", q.QuestionID, prev, i)
		}
		seen[q.QuestionID] = i
	}
	return nil
}

// ByID returns the question with the given stable id.
func (c Catalog) ByID(id int) (*Question, bool) {
	for i := range c {
		if c[i].QuestionID == id {
			return &c[i], true
		}
	}
	return nil, false
}

// BranchRule is the conditional-skip policy tied to the gating question.
// Positions are configuration, not code, so editing the catalog cannot
// silently break the skip.
type BranchRule struct {
	GatingIndex   int
	TriggerOption string
	SkipToIndex   int
}

// Enabled reports whether the rule is active. An empty trigger option
// disables branching entirely.
func (r BranchRule) Enabled() bool {
	return strings.TrimSpace(r.TriggerOption) != ""
}

// Validate checks the rule against the catalog length. SkipToIndex equal
// to the catalog length is allowed and means "skip to completion".
func (r BranchRule) Validate(catalogLen int) error {
	if !r.Enabled() {
		return nil
	}
	if r.GatingIndex < 0 || r.GatingIndex >= catalogLen {
		return fmt.Errorf("branch rule gating index %d is outside the catalog (length %d)", r.GatingIndex, catalogLen)
	}
	if r.SkipToIndex <= r.GatingIndex {
		return fmt.Errorf("branch rule skip-to index %d must be greater than gating index %d", r.SkipToIndex, r.GatingIndex)
	}
	if r.SkipToIndex > catalogLen {
		return fmt.Errorf("branch rule skip-to index %d is beyond the catalog (length %d)", r.SkipToIndex, catalogLen)
	}
	return nil
}
