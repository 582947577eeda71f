package model

import (
	"strings"
	"time"
)

// Intent classifies what kind of answer a question is asking for.
type Intent string

const (
	IntentDefinitional Intent = "definitional" // "what does X mean"
	IntentEligibility  Intent = "eligibility"  // "does X qualify for Y"
	IntentProcedural   Intent = "procedural"   // "how do I apply for X"
	IntentComparative  Intent = "comparative"  // "how does X differ from Y"
	IntentUnknown      Intent = "unknown"
)

// EntityType tags the kind of legal reference an entity names.
type EntityType string

const (
	EntityStatute    EntityType = "statute"
	EntityRegulation EntityType = "regulation"
	EntitySection    EntityType = "section"
	EntityTopic      EntityType = "topic"
)

// Entity is a legal reference recognized in the question text.
type Entity struct {
	Surface    string     `json:"surface"` // text as it appeared in the question
	Type       EntityType `json:"type"`
	Normalized string     `json:"normalized"` // folded, whitespace-collapsed lookup form
	Confidence float64    `json:"confidence"`
}

// Filters narrow retrieval to a slice of the corpus.
type Filters struct {
	Jurisdiction  string     `json:"jurisdiction,omitempty"` // "federal", "ontario", ...
	DocType       string     `json:"doc_type,omitempty"`     // "act" or "regulation"
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

// Empty reports whether no filter dimension is set.
func (f Filters) Empty() bool {
	return f.Jurisdiction == "" && f.DocType == "" && f.EffectiveFrom == nil && f.EffectiveTo == nil
}

// Question is the analyzed form of a user question. It is built once by the
// analyzer and read-only everywhere downstream.
type Question struct {
	ID               string    `json:"id"`
	Raw              string    `json:"raw"`
	Intent           Intent    `json:"intent"`
	IntentConfidence float64   `json:"intent_confidence"`
	Keywords         []string  `json:"keywords"`
	Entities         []Entity  `json:"entities"`
	Filters          Filters   `json:"filters"`
	AskedAt          time.Time `json:"asked_at"`
}

// PrimaryTopic returns a short description of what the question is about:
// the first recognized entity surface, else the trimmed question text.
func (q *Question) PrimaryTopic() string {
	for _, e := range q.Entities {
		if e.Surface != "" {
			return e.Surface
		}
	}
	return strings.TrimSpace(q.Raw)
}

// KeywordQuery joins the extracted keywords into a single search string.
func (q *Question) KeywordQuery() string {
	if len(q.Keywords) == 0 {
		return strings.TrimSpace(q.Raw)
	}
	return strings.Join(q.Keywords, " ")
}
