package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips combining marks after NFD decomposition, so
// "admissibilité" and "admissibilite" produce the same keyword. The corpus
// is bilingual and user spelling of accents is unreliable.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and removes diacritics.
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// stopWords covers common English and French function words. Words shorter
// than three characters are excluded before this check applies.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "been": true, "have": true, "has": true, "had": true,
	"this": true, "that": true, "with": true, "from": true, "what": true,
	"how": true, "does": true, "which": true, "where": true, "when": true,
	"who": true, "why": true, "can": true, "will": true, "not": true,
	"under": true, "into": true, "about": true, "there": true,
	"les": true, "des": true, "une": true, "est": true, "que": true,
	"qui": true, "quoi": true, "comment": true, "pour": true, "dans": true,
	"quel": true, "quelle": true, "quels": true, "quelles": true,
	"sur": true, "avec": true, "sont": true, "cette": true, "ces": true,
	"aux": true, "par": true, "peut": true, "doit": true,
}

// splitElision drops a one- or two-letter French elision prefix, so
// "d'admissibilite" becomes "admissibilite". English possessives keep
// their apostrophe.
func splitElision(w string) string {
	for _, apos := range []string{"'", "’"} {
		if i := strings.Index(w, apos); i > 0 && i <= 2 {
			return w[i+len(apos):]
		}
	}
	return w
}

// extractKeywords returns folded words of 3+ characters from text,
// excluding stop words, deduplicated, in original order.
func extractKeywords(text string) []string {
	words := strings.Fields(fold(text))
	var keywords []string
	seen := make(map[string]bool)
	for _, w := range words {
		// Strip punctuation.
		w = strings.Trim(w, "?.,!;:'\"()[]{}«»")
		w = splitElision(w)
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// normalizeEntity produces the folded, whitespace-collapsed lookup form of
// an entity surface.
func normalizeEntity(surface string) string {
	return strings.Join(strings.Fields(fold(surface)), " ")
}
