// Package validate enforces the citation contract on synthesized answers and
// grades the final confidence level.
//
// Grading rules:
//   - High: nothing removed, top evidence score at or above high_score_bar,
//     generator self-assessed high, and no conflict findings.
//   - Low: nothing survived validation, top evidence score below
//     low_score_bar, or the generator self-assessed low with under half the
//     statements passing.
//   - Medium: everything else. Any conflict finding caps the grade here.
package validate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/config"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qaerr"
)

const failClosedFormat = "Unable to provide a grounded answer about %s: the retrieved sources do not contain sufficient supporting evidence."

// Result is the validated answer plus the grading inputs that produced its
// confidence, kept for observability.
type Result struct {
	Answer     model.StructuredAnswer
	Confidence model.ConfidenceLevel
	Removed    int
	PassRatio  float64
	MaxScore   float64
	FailClosed bool
}

// Validator checks generator claims against the fused context and computes
// final confidence from documented thresholds.
type Validator struct {
	highBar float64
	lowBar  float64
}

// New creates a validator from the configured confidence thresholds.
func New(cfg config.ConfidenceConfig) *Validator {
	if cfg.HighScoreBar <= 0 {
		cfg.HighScoreBar = 0.75
	}
	if cfg.LowScoreBar <= 0 {
		cfg.LowScoreBar = 0.35
	}
	return &Validator{highBar: cfg.HighScoreBar, lowBar: cfg.LowScoreBar}
}

// Validate treats the answer as untrusted input: every claim and requirement
// must cite evidence actually present in the fused context or it is deleted,
// never rewritten. Deletions are recorded in the answer's limitations. When
// nothing grounded survives, the answer collapses to the canonical
// fail-closed sentence for the question's topic.
func (v *Validator) Validate(q *model.Question, ans *model.StructuredAnswer, fc *model.FusedContext, findings []model.ConflictFinding) *Result {
	out := *ans
	limitations := append([]string(nil), ans.Limitations...)
	removed := 0

	claims := make([]model.Claim, 0, len(ans.Claims))
	for _, c := range ans.Claims {
		refs, ok := resolveRefs(c.Refs, fc)
		if !ok {
			removed++
			limitations = append(limitations, removalNote("statement", c.Text, c.Refs))
			zap.L().Warn("validate: removed claim",
				zap.String("question_id", q.ID),
				zap.Error(&qaerr.CitationMismatchError{ClaimText: c.Text, Refs: c.Refs}),
			)
			continue
		}
		c.Refs = refs
		claims = append(claims, c)
	}

	reqs := make([]model.Requirement, 0, len(ans.Requirements))
	for _, r := range ans.Requirements {
		refs, ok := resolveRefs(r.Refs, fc)
		if !ok {
			removed++
			limitations = append(limitations, removalNote("requirement", r.Text, r.Refs))
			zap.L().Warn("validate: removed requirement",
				zap.String("question_id", q.ID),
				zap.Error(&qaerr.CitationMismatchError{ClaimText: r.Text, Refs: r.Refs}),
			)
			continue
		}
		r.Refs = refs
		reqs = append(reqs, r)
	}

	total := len(ans.Claims) + len(ans.Requirements)
	passed := len(claims) + len(reqs)
	passRatio := 0.0
	if total > 0 {
		passRatio = float64(passed) / float64(total)
	}

	maxScore := 0.0
	if fc != nil {
		maxScore = fc.MaxScore()
	}

	if passed == 0 {
		// Either the generator declared the evidence insufficient or
		// validation stripped everything it asserted. Both collapse to the
		// canonical sentence rather than returning prose that cites nothing.
		closed := FailClosedAnswer(q.PrimaryTopic())
		closed.Limitations = append(closed.Limitations, limitations...)
		return &Result{
			Answer:     closed,
			Confidence: model.ConfidenceLow,
			Removed:    removed,
			PassRatio:  passRatio,
			MaxScore:   maxScore,
			FailClosed: true,
		}
	}

	out.Claims = claims
	out.Requirements = reqs
	out.Limitations = limitations

	conf := v.grade(passRatio, maxScore, out.SelfAssessment.Level, removed, len(findings))
	zap.L().Debug("validation complete",
		zap.String("question_id", q.ID),
		zap.Int("removed", removed),
		zap.Float64("pass_ratio", passRatio),
		zap.Float64("max_score", maxScore),
		zap.String("confidence", string(conf)),
	)

	return &Result{
		Answer:     out,
		Confidence: conf,
		Removed:    removed,
		PassRatio:  passRatio,
		MaxScore:   maxScore,
	}
}

func (v *Validator) grade(passRatio, maxScore float64, self model.ConfidenceLevel, removed, findings int) model.ConfidenceLevel {
	if maxScore < v.lowBar || (self == model.ConfidenceLow && passRatio < 0.5) {
		return model.ConfidenceLow
	}
	if removed == 0 && maxScore >= v.highBar && self == model.ConfidenceHigh && findings == 0 {
		return model.ConfidenceHigh
	}
	return model.ConfidenceMedium
}

// FailClosedAnswer is the canonical insufficient-evidence response. The
// topic tells the user what the sources could not cover.
func FailClosedAnswer(topic string) model.StructuredAnswer {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "this question"
	}
	return model.StructuredAnswer{
		Direct: fmt.Sprintf(failClosedFormat, topic),
		SelfAssessment: model.SelfAssessment{
			Level:         model.ConfidenceLow,
			Justification: "No sufficiently grounded evidence survived validation.",
		},
	}
}

// resolveRefs maps a statement's references onto canonical context ref ids,
// deduplicating along the way. Every reference must resolve or the whole
// statement fails; dropping just the bad reference would be a rewrite.
func resolveRefs(refs []string, fc *model.FusedContext) ([]string, bool) {
	if fc == nil || len(refs) == 0 {
		return nil, false
	}
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, ok := resolveOne(strings.TrimSpace(ref), fc)
		if !ok {
			return nil, false
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, true
}

func resolveOne(ref string, fc *model.FusedContext) (string, bool) {
	if ref == "" {
		return "", false
	}
	if h, ok := fc.ByRef(strings.ToUpper(ref)); ok {
		return h.Ref, true
	}
	// Generators occasionally cite by name instead of tag; accept an exact
	// citation-string match.
	for i := range fc.Hits {
		h := &fc.Hits[i]
		if strings.EqualFold(ref, h.Citation.String()) {
			return h.Ref, true
		}
	}
	return "", false
}

func removalNote(kind, text string, refs []string) string {
	if len(refs) == 0 {
		return fmt.Sprintf("Removed an uncited %s: %q", kind, snip(text))
	}
	return fmt.Sprintf("Removed a %s citing unverifiable sources [%s]: %q", kind, strings.Join(refs, ", "), snip(text))
}

func snip(s string) string {
	const max = 80
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
