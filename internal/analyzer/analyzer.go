// Package analyzer turns a raw user question into the structured form the
// retrieval cascade operates on. Classification is rule-based and
// deterministic; no backend or generator is consulted.
package analyzer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
)

// maxQuestionRunes bounds accepted input. Anything longer is almost
// certainly pasted document text, not a question.
const maxQuestionRunes = 2000

// Analyzer builds model.Question values from raw text.
type Analyzer struct {
	now func() time.Time
}

// New returns an Analyzer using the wall clock.
func New() *Analyzer {
	return &Analyzer{now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (a *Analyzer) WithNow(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze validates the raw question and extracts intent, keywords,
// entities, and retrieval filters. The only failure mode is invalid input.
func (a *Analyzer) Analyze(raw string) (*model.Question, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, qaerr.NewInvalidInput("question is empty")
	}
	if !utf8.ValidString(trimmed) {
		return nil, qaerr.NewInvalidInput("question is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(trimmed); n > maxQuestionRunes {
		return nil, qaerr.NewInvalidInput(fmt.Sprintf("question is %d characters, max %d", n, maxQuestionRunes))
	}

	intent, confidence := classifyIntent(trimmed)

	q := &model.Question{
		ID:               uuid.New().String(),
		Raw:              trimmed,
		Intent:           intent,
		IntentConfidence: confidence,
		Keywords:         extractKeywords(trimmed),
		Entities:         extractEntities(trimmed),
		Filters:          deriveFilters(trimmed),
		AskedAt:          a.now().UTC(),
	}

	zap.L().Debug("analyzer: question analyzed",
		zap.String("question_id", q.ID),
		zap.String("intent", string(q.Intent)),
		zap.Float64("intent_confidence", q.IntentConfidence),
		zap.Int("keywords", len(q.Keywords)),
		zap.Int("entities", len(q.Entities)),
	)

	return q, nil
}
