package conflict

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisearch/statuteqa/internal/model"
)

func ctxOf(hits ...model.RetrievalHit) *model.FusedContext {
	for i := range hits {
		hits[i].Ref = fmt.Sprintf("S%d", i+1)
	}
	return &model.FusedContext{Hits: hits}
}

func provision(doc, title string, rels ...model.Relation) model.RetrievalHit {
	return model.RetrievalHit{
		ID:        doc + "-1",
		DocID:     doc,
		SectionID: "1",
		Title:     title,
		Citation:  model.Citation{DocumentTitle: title, Section: "1"},
		Relations: rels,
	}
}

func edge(kind model.RelationKind, target string) model.Relation {
	return model.Relation{Kind: kind, TargetID: target}
}

func span(from, to string) model.EffectiveRange {
	parse := func(s string) *time.Time {
		if s == "" {
			return nil
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			panic(err)
		}
		return &d
	}
	return model.EffectiveRange{From: parse(from), To: parse(to)}
}

func TestDetect_NoMetadataNoFindings(t *testing.T) {
	fc := ctxOf(
		provision("ei-act", "Employment Insurance Act"),
		provision("clc", "Canada Labour Code"),
	)
	assert.Nil(t, Detect(fc))
}

func TestDetect_EmptyAndSingleHit(t *testing.T) {
	assert.Nil(t, Detect(nil))
	assert.Nil(t, Detect(&model.FusedContext{}))
	assert.Nil(t, Detect(ctxOf(provision("ei-act", "Employment Insurance Act"))))
}

func TestDetect_Supersession(t *testing.T) {
	fc := ctxOf(
		provision("new-act", "Budget Implementation Act", edge(model.RelationSupersedes, "old-act")),
		provision("old-act", "Unemployment Insurance Act"),
	)

	findings := Detect(fc)
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConflictSupersession, findings[0].Kind)
	assert.Equal(t, "S1", findings[0].RefA)
	assert.Equal(t, "S2", findings[0].RefB)
	assert.Contains(t, findings[0].Description, "supersedes")
	assert.Contains(t, findings[0].Description, "Budget Implementation Act")
}

func TestDetect_MutualSupersessionSingleFinding(t *testing.T) {
	fc := ctxOf(
		provision("act-a", "Act A", edge(model.RelationSupersedes, "act-b")),
		provision("act-b", "Act B", edge(model.RelationSupersedes, "act-a")),
	)

	findings := Detect(fc)
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConflictSupersession, findings[0].Kind)
	assert.Contains(t, findings[0].Description, "each claim to supersede")
}

func TestDetect_SupersessionEdgeOnLaterHit(t *testing.T) {
	// the edge lives on S2 but refs still order S1 < S2
	fc := ctxOf(
		provision("old-act", "Unemployment Insurance Act"),
		provision("new-act", "Budget Implementation Act", edge(model.RelationSupersedes, "old-act")),
	)

	findings := Detect(fc)
	require.Len(t, findings, 1)
	assert.Equal(t, "S1", findings[0].RefA)
	assert.Equal(t, "S2", findings[0].RefB)
	assert.Contains(t, findings[0].Description, "S2 (Budget Implementation Act, s 1) supersedes S1")
}

func TestDetect_AmendmentIsContradictionCandidate(t *testing.T) {
	fc := ctxOf(
		provision("amending-act", "An Act to amend the Canada Labour Code", edge(model.RelationAmends, "clc")),
		provision("clc", "Canada Labour Code"),
	)

	findings := Detect(fc)
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConflictContradiction, findings[0].Kind)
	assert.Contains(t, findings[0].Description, "amends")
}

func TestDetect_OverlapOnSharedGovernedTarget(t *testing.T) {
	a := provision("act-a", "Act A", edge(model.RelationSupersedes, "ei-act"))
	a.Effective = span("2010-01-01", "2020-12-31")
	b := provision("act-b", "Act B", edge(model.RelationAmends, "ei-act"))
	b.Effective = span("2015-01-01", "2025-12-31")

	findings := Detect(ctxOf(a, b))
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConflictOverlap, findings[0].Kind)
	assert.Contains(t, findings[0].Description, "ei-act")
	assert.Contains(t, findings[0].Description, "overlapping effective periods")
}

func TestDetect_NoOverlapWhenPeriodsDisjoint(t *testing.T) {
	a := provision("act-a", "Act A", edge(model.RelationSupersedes, "ei-act"))
	a.Effective = span("2000-01-01", "2005-12-31")
	b := provision("act-b", "Act B", edge(model.RelationSupersedes, "ei-act"))
	b.Effective = span("2010-01-01", "2015-12-31")

	assert.Nil(t, Detect(ctxOf(a, b)))
}

func TestDetect_NoOverlapWhenPeriodsIdentical(t *testing.T) {
	a := provision("act-a", "Act A", edge(model.RelationAmends, "ei-act"))
	a.Effective = span("2010-01-01", "2020-12-31")
	b := provision("act-b", "Act B", edge(model.RelationAmends, "ei-act"))
	b.Effective = span("2010-01-01", "2020-12-31")

	assert.Nil(t, Detect(ctxOf(a, b)))
}

func TestDetect_NoOverlapWhenDatesUnknown(t *testing.T) {
	a := provision("act-a", "Act A", edge(model.RelationAmends, "ei-act"))
	a.Effective = span("2010-01-01", "2020-12-31")
	b := provision("act-b", "Act B", edge(model.RelationAmends, "ei-act"))

	assert.Nil(t, Detect(ctxOf(a, b)))
}

func TestDetect_ReferencesNeverConflict(t *testing.T) {
	fc := ctxOf(
		provision("ei-act", "Employment Insurance Act",
			edge(model.RelationReferences, "clc"),
			edge(model.RelationReferences, "interp-act")),
		provision("clc", "Canada Labour Code",
			edge(model.RelationReferences, "interp-act")),
	)
	assert.Nil(t, Detect(fc))
}

func TestDetect_FindingsStableAcrossCalls(t *testing.T) {
	fc := ctxOf(
		provision("act-a", "Act A", edge(model.RelationSupersedes, "act-b")),
		provision("act-b", "Act B", edge(model.RelationAmends, "act-c")),
		provision("act-c", "Act C"),
	)

	first := Detect(fc)
	second := Detect(fc)
	require.Len(t, first, 2)
	assert.Equal(t, first, second)

	// pair order follows context order
	assert.Equal(t, "S1", first[0].RefA)
	assert.Equal(t, "S2", first[0].RefB)
	assert.Equal(t, "S2", first[1].RefA)
	assert.Equal(t, "S3", first[1].RefB)
}

func TestDetect_SupersessionAndOverlapCanCoexist(t *testing.T) {
	a := provision("act-a", "Act A",
		edge(model.RelationSupersedes, "act-b"),
		edge(model.RelationAmends, "ei-act"))
	a.Effective = span("2010-01-01", "")
	b := provision("act-b", "Act B", edge(model.RelationAmends, "ei-act"))
	b.Effective = span("2012-01-01", "")

	findings := Detect(ctxOf(a, b))
	require.Len(t, findings, 2)
	assert.Equal(t, model.ConflictSupersession, findings[0].Kind)
	assert.Equal(t, model.ConflictOverlap, findings[1].Kind)
}
