package analyzer

import (
	"regexp"

	"github.com/jurisearch/statuteqa/internal/model"
)

// intentRule pairs a cue pattern with the intent it signals. Rules are
// evaluated in order; earlier rules take priority when several match
// because their cues are the more specific ones.
type intentRule struct {
	intent model.Intent
	re     *regexp.Regexp
}

var intentRules = []intentRule{
	{model.IntentComparative, regexp.MustCompile(`(?i)\b(differ(s|ence|ent)?|compare[ds]?|comparison|versus|vs\.?|distinguish)\b`)},
	{model.IntentProcedural, regexp.MustCompile(`(?i)\b(how (do|does|can|to)|apply(ing)? for|file (a|an|for)|procedure|process (for|to)|steps? (to|for)|deadline)\b`)},
	{model.IntentEligibility, regexp.MustCompile(`(?i)\b(eligib\w*|qualif\w*|entitle\w*|am i (covered|required)|do i (get|have|need)|can (i|an? \w+)|allowed to|required to|exempt\w*)\b`)},
	{model.IntentDefinitional, regexp.MustCompile(`(?i)\b(what (is|are|does|counts as)|mean(s|ing)?|defin(e[sd]?|ition)|refers? to)\b`)},
}

const (
	confidenceSingleMatch = 0.9
	confidenceAmbiguous   = 0.55
	confidenceNoMatch     = 0.2
)

// classifyIntent returns the best single intent for the question. Ambiguous
// questions keep the highest-priority match with reduced confidence; no
// match at all is a valid outcome classified as unknown.
func classifyIntent(text string) (model.Intent, float64) {
	var matched []model.Intent
	for _, r := range intentRules {
		if r.re.MatchString(text) {
			matched = append(matched, r.intent)
		}
	}

	switch len(matched) {
	case 0:
		return model.IntentUnknown, confidenceNoMatch
	case 1:
		return matched[0], confidenceSingleMatch
	default:
		return matched[0], confidenceAmbiguous
	}
}
