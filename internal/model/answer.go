package model

// ConflictKind is the category of a detected inter-provision conflict.
type ConflictKind string

const (
	ConflictSupersession  ConflictKind = "supersession"  // one provision supersedes another present in context
	ConflictContradiction ConflictKind = "contradiction" // amendment edge between two context provisions
	ConflictOverlap       ConflictKind = "overlap"       // same target, overlapping effective periods
)

// ConflictFinding is one deterministic conflict detected between two hits in
// a fused context. RefA always sorts before RefB.
type ConflictFinding struct {
	Kind        ConflictKind `json:"kind"`
	RefA        string       `json:"ref_a"`
	RefB        string       `json:"ref_b"`
	Description string       `json:"description"`
}

// Claim is a single factual statement tied to the evidence supporting it.
// A claim with no surviving refs must not appear in a validated answer.
type Claim struct {
	Text string   `json:"text"`
	Refs []string `json:"refs"`
}

// Requirement is a condition or obligation the cited provisions impose.
type Requirement struct {
	Text string   `json:"text"`
	Refs []string `json:"refs"`
}

// ConfidenceLevel is the validator's overall trust grade for an answer.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// SelfAssessment is the generator's own estimate of answer quality. It is
// advisory input to the validator, never the final confidence.
type SelfAssessment struct {
	Level         ConfidenceLevel `json:"level"`
	Justification string          `json:"justification"`
}

// StructuredAnswer is the schema the generator must produce and the
// validator edits in place. Claims and requirements carry context refs;
// everything else is prose.
type StructuredAnswer struct {
	Direct         string         `json:"direct"`
	Explanation    string         `json:"explanation"`
	Claims         []Claim        `json:"claims"`
	Requirements   []Requirement  `json:"requirements"`
	ConflictNotes  []string       `json:"conflict_notes,omitempty"` // generator prose about flagged conflicts
	SelfAssessment SelfAssessment `json:"self_assessment"`
	Limitations    []string       `json:"limitations,omitempty"`
}
