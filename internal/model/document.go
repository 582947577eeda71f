package model

import (
	"fmt"
	"time"
)

// Tier identifies a retrieval backend position in cascade order.
type Tier int

const (
	Tier1Narrow   Tier = 1 // hybrid keyword+vector, entity-scoped
	Tier2Broad    Tier = 2 // hybrid keyword+vector, filters relaxed
	Tier3Graph    Tier = 3 // graph traversal over document relationships
	Tier4Fulltext Tier = 4 // relational full-text fallback
)

// String returns a short operator-facing label.
func (t Tier) String() string {
	switch t {
	case Tier1Narrow:
		return "tier1_hybrid_narrow"
	case Tier2Broad:
		return "tier2_hybrid_broad"
	case Tier3Graph:
		return "tier3_graph"
	case Tier4Fulltext:
		return "tier4_fulltext"
	default:
		return fmt.Sprintf("tier%d", int(t))
	}
}

// RelationKind is the type of an edge between two provisions or documents.
type RelationKind string

const (
	RelationSupersedes RelationKind = "supersedes"
	RelationAmends     RelationKind = "amends"
	RelationReferences RelationKind = "references"
)

// Relation is a typed edge from a provision to another document or section.
type Relation struct {
	Kind     RelationKind `json:"kind"`
	TargetID string       `json:"target_id"` // document or section id the edge points at
}

// Citation identifies the provision a hit was drawn from, in the short form
// used by Canadian legal writing.
type Citation struct {
	DocumentTitle string `json:"document_title"`
	Section       string `json:"section,omitempty"`
}

// String renders "Employment Insurance Act, s 5(2)" or just the title when
// no section is known.
func (c Citation) String() string {
	if c.Section == "" {
		return c.DocumentTitle
	}
	return fmt.Sprintf("%s, s %s", c.DocumentTitle, c.Section)
}

// EffectiveRange is the period a provision is in force. A nil bound is
// open-ended on that side.
type EffectiveRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r EffectiveRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Overlaps reports whether two in-force periods intersect. Open bounds
// extend infinitely in their direction.
func (r EffectiveRange) Overlaps(other EffectiveRange) bool {
	if r.From != nil && other.To != nil && r.From.After(*other.To) {
		return false
	}
	if other.From != nil && r.To != nil && other.From.After(*r.To) {
		return false
	}
	return true
}

// RetrievalHit is one scored passage returned by a backend adapter.
// RawScore is whatever the backend reported on its native scale; Score is
// the normalized 0..1 form assigned during fusion and is zero before then.
type RetrievalHit struct {
	ID             string         `json:"id"`            // backend-assigned hit id
	Ref            string         `json:"ref,omitempty"` // stable context reference ("S1"), assigned at fusion
	Tier           Tier           `json:"tier"`
	RawScore       float64        `json:"raw_score"`
	Score          float64        `json:"score"`
	DocID          string         `json:"doc_id"`
	SectionID      string         `json:"section_id"`
	DocType        string         `json:"doc_type,omitempty"` // "act" or "regulation"
	Title          string         `json:"title"`
	Snippet        string         `json:"snippet"`
	Citation       Citation       `json:"citation"`
	Effective      EffectiveRange `json:"effective,omitempty"`
	Relations      []Relation     `json:"relations,omitempty"`
	CorroboratedBy []Tier         `json:"corroborated_by,omitempty"` // later tiers that returned the same provision
}

// ProvisionKey returns the identity used for cross-tier deduplication.
func (h *RetrievalHit) ProvisionKey() string {
	return h.DocID + "\x00" + h.SectionID
}

// FusedContext is the deduplicated, ordered, budget-trimmed evidence set
// handed to synthesis. Hits are unique by (DocID, SectionID), sorted by
// Score desc then Tier asc then effective recency desc, and every hit
// carries a Ref of the form "S<n>" matching its position.
type FusedContext struct {
	Hits       []RetrievalHit `json:"hits"`
	TotalChars int            `json:"total_chars"`
	Budget     int            `json:"budget"`
}

// ByRef returns the hit carrying the given context reference id.
func (fc *FusedContext) ByRef(ref string) (*RetrievalHit, bool) {
	for i := range fc.Hits {
		if fc.Hits[i].Ref == ref {
			return &fc.Hits[i], true
		}
	}
	return nil, false
}

// MaxScore returns the highest normalized score in the context, 0 if empty.
func (fc *FusedContext) MaxScore() float64 {
	max := 0.0
	for i := range fc.Hits {
		if fc.Hits[i].Score > max {
			max = fc.Hits[i].Score
		}
	}
	return max
}
