// Package conflict flags contradictions between provisions in a fused
// context using relationship metadata only. It fires on explicit
// supersedes/amends edges and on shared governed targets with clashing
// effective periods, never on text similarity.
package conflict

import (
	"fmt"
	"time"

	"github.com/jurisearch/statuteqa/internal/model"
)

// Detect inspects every pair of hits and returns the conflicts their
// metadata proves. Pure and deterministic: pairs are visited in context
// order, so RefA always sorts before RefB and repeated calls yield identical
// findings. Hits without relationship metadata never produce findings.
func Detect(fc *model.FusedContext) []model.ConflictFinding {
	if fc == nil || len(fc.Hits) < 2 {
		return nil
	}

	var findings []model.ConflictFinding
	hits := fc.Hits
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			findings = append(findings, comparePair(&hits[i], &hits[j])...)
		}
	}
	return findings
}

// comparePair evaluates one hit pair against the three conflict rules. A
// pair yields at most one finding per kind; mutual edges collapse into a
// single finding.
func comparePair(a, b *model.RetrievalHit) []model.ConflictFinding {
	var out []model.ConflictFinding

	aOverB := hasEdge(a, model.RelationSupersedes, b.DocID)
	bOverA := hasEdge(b, model.RelationSupersedes, a.DocID)
	switch {
	case aOverB && bOverA:
		out = append(out, finding(model.ConflictSupersession, a, b,
			fmt.Sprintf("%s and %s each claim to supersede the other", a.Ref, b.Ref)))
	case aOverB:
		out = append(out, finding(model.ConflictSupersession, a, b,
			fmt.Sprintf("%s (%s) supersedes %s (%s)", a.Ref, a.Citation.String(), b.Ref, b.Citation.String())))
	case bOverA:
		out = append(out, finding(model.ConflictSupersession, a, b,
			fmt.Sprintf("%s (%s) supersedes %s (%s)", b.Ref, b.Citation.String(), a.Ref, a.Citation.String())))
	}

	aAmendsB := hasEdge(a, model.RelationAmends, b.DocID)
	bAmendsA := hasEdge(b, model.RelationAmends, a.DocID)
	switch {
	case aAmendsB && bAmendsA:
		out = append(out, finding(model.ConflictContradiction, a, b,
			fmt.Sprintf("%s and %s each amend the other's document", a.Ref, b.Ref)))
	case aAmendsB:
		out = append(out, finding(model.ConflictContradiction, a, b,
			fmt.Sprintf("%s (%s) amends %s (%s)", a.Ref, a.Citation.String(), b.Ref, b.Citation.String())))
	case bAmendsA:
		out = append(out, finding(model.ConflictContradiction, a, b,
			fmt.Sprintf("%s (%s) amends %s (%s)", b.Ref, b.Citation.String(), a.Ref, a.Citation.String())))
	}

	// Two provisions that both rewrite the same target, in force over
	// clashing periods, leave it ambiguous which one governs. Hits missing
	// effective dates are given the benefit of the doubt.
	if target, ok := sharedGovernedTarget(a, b); ok {
		if !a.Effective.IsZero() && !b.Effective.IsZero() &&
			!rangesEqual(a.Effective, b.Effective) && a.Effective.Overlaps(b.Effective) {
			out = append(out, finding(model.ConflictOverlap, a, b,
				fmt.Sprintf("%s and %s both govern %s over overlapping effective periods", a.Ref, b.Ref, target)))
		}
	}

	return out
}

func finding(kind model.ConflictKind, a, b *model.RetrievalHit, desc string) model.ConflictFinding {
	return model.ConflictFinding{Kind: kind, RefA: a.Ref, RefB: b.Ref, Description: desc}
}

func hasEdge(h *model.RetrievalHit, kind model.RelationKind, targetDoc string) bool {
	if targetDoc == "" {
		return false
	}
	for _, r := range h.Relations {
		if r.Kind == kind && r.TargetID == targetDoc {
			return true
		}
	}
	return false
}

// sharedGovernedTarget returns the first target both hits modify through a
// supersedes or amends edge. Plain references are citations, not claims of
// governance, and never count.
func sharedGovernedTarget(a, b *model.RetrievalHit) (string, bool) {
	for _, ra := range a.Relations {
		if ra.Kind == model.RelationReferences || ra.TargetID == "" {
			continue
		}
		for _, rb := range b.Relations {
			if rb.Kind == model.RelationReferences {
				continue
			}
			if ra.TargetID == rb.TargetID {
				return ra.TargetID, true
			}
		}
	}
	return "", false
}

func rangesEqual(a, b model.EffectiveRange) bool {
	return timesEqual(a.From, b.From) && timesEqual(a.To, b.To)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
