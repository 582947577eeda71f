package model

import "time"

// TierStats records one tier's contribution to a request, invoked or not.
type TierStats struct {
	Tier     Tier    `json:"tier"`
	Invoked  bool    `json:"invoked"`
	HitCount int     `json:"hit_count"`
	MaxScore float64 `json:"max_score"` // highest normalized score this tier produced
	Duration int64   `json:"duration_ms"`
	Err      string  `json:"error,omitempty"` // unavailability or timeout note; never fatal
}

// FinalResponse is the complete outcome of one answered question.
type FinalResponse struct {
	RequestID   string            `json:"request_id"`
	Question    Question          `json:"question"`
	Answer      StructuredAnswer  `json:"answer"`
	Confidence  ConfidenceLevel   `json:"confidence"`
	Findings    []ConflictFinding `json:"findings,omitempty"`
	Sources     []RetrievalHit    `json:"sources,omitempty"` // the fused context the answer cites
	TiersUsed   []Tier            `json:"tiers_used"`
	TierStats   []TierStats       `json:"tier_stats"`
	FailClosed  bool              `json:"fail_closed"` // true when no supported answer could be produced
	Duration    int64             `json:"duration_ms"`
	GeneratedAt time.Time         `json:"generated_at"`
}
