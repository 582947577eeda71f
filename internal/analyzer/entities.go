package analyzer

import (
	"regexp"
	"strings"
	"time"

	"github.com/jurisearch/statuteqa/internal/model"
)

var (
	// English statute and regulation titles: capitalized words joined by
	// common connectors, ending in Act/Code or Regulations.
	actPattern        = regexp.MustCompile(`\b[A-Z][A-Za-z'’-]*(?:\s+(?:of|the|and|on|in|for|to|[A-Z][A-Za-z'’-]*))*\s+(?:Act|Code)\b`)
	regulationPattern = regexp.MustCompile(`\b[A-Z][A-Za-z'’-]*(?:\s+(?:of|the|and|on|in|for|to|[A-Z][A-Za-z'’-]*))*\s+Regulations?\b`)

	// French titles: "Loi sur l'assurance-emploi", "Règlement sur ...".
	frenchTitlePattern = regexp.MustCompile(`\b(Loi|Règlement|Code)\s+(?:sur|de|du|des|concernant)\s+[^,.?!;]+`)

	// Registered instrument numbers: SOR/96-332, SI/2005-34.
	instrumentPattern = regexp.MustCompile(`\b(?:SOR|SI)/\d{2,4}-\d+\b`)

	// Section references: "section 5(2)", "s. 18", "paragraph 6(1)(a)",
	// "subsection 2.1", "art. 1457".
	sectionPattern = regexp.MustCompile(`(?i)\b(?:(?:sub)?sections?|paragraphs?|articles?|art\.|ss?\.?)\s+(\d+(?:\.\d+)*(?:\([0-9a-z]+\))*)`)

	// Quoted phrases are treated as explicit topics.
	quotedTopicPattern    = regexp.MustCompile(`"([^"]{3,80})"`)
	guillemetTopicPattern = regexp.MustCompile(`«\s*([^»]{3,80}?)\s*»`)
)

// titleLeadTrim holds capitalized sentence-starters that the title patterns
// can swallow ("Does the Canada Labour Code..."). They are stripped from the
// front of a matched title.
var titleLeadTrim = map[string]bool{
	"does": true, "is": true, "are": true, "can": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"how": true, "will": true, "would": true, "should": true, "could": true,
	"must": true, "may": true, "the": true, "a": true, "an": true,
	"in": true, "under": true, "if": true, "per": true,
}

// trimTitleMatch drops leading question words from a matched title. Returns
// "" when nothing but the Act/Code/Regulations word itself remains.
func trimTitleMatch(match string) string {
	tokens := strings.Fields(match)
	start := 0
	for start < len(tokens)-1 && titleLeadTrim[strings.ToLower(tokens[start])] {
		start++
	}
	if len(tokens)-start < 2 {
		return ""
	}
	return strings.Join(tokens[start:], " ")
}

// extractEntities recognizes statute, regulation, section, and topic
// references in the question text. Results are deduplicated by normalized
// form and type, in order of first appearance.
func extractEntities(text string) []model.Entity {
	var entities []model.Entity
	seen := make(map[string]bool)

	add := func(surface string, typ model.EntityType, confidence float64) {
		surface = strings.TrimSpace(surface)
		if surface == "" {
			return
		}
		normalized := normalizeEntity(surface)
		key := string(typ) + "\x00" + normalized
		if seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, model.Entity{
			Surface:    surface,
			Type:       typ,
			Normalized: normalized,
			Confidence: confidence,
		})
	}

	for _, m := range actPattern.FindAllString(text, -1) {
		if title := trimTitleMatch(m); title != "" {
			add(title, model.EntityStatute, 0.9)
		}
	}
	for _, m := range regulationPattern.FindAllString(text, -1) {
		if title := trimTitleMatch(m); title != "" {
			add(title, model.EntityRegulation, 0.9)
		}
	}
	for _, m := range frenchTitlePattern.FindAllStringSubmatch(text, -1) {
		typ := model.EntityStatute
		if m[1] == "Règlement" {
			typ = model.EntityRegulation
		}
		add(m[0], typ, 0.6)
	}
	for _, m := range instrumentPattern.FindAllString(text, -1) {
		add(m, model.EntityRegulation, 0.95)
	}
	for _, m := range sectionPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], model.EntitySection, 0.85)
	}
	for _, m := range quotedTopicPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], model.EntityTopic, 0.8)
	}
	for _, m := range guillemetTopicPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], model.EntityTopic, 0.8)
	}

	return entities
}

// jurisdictionCues maps text cues to jurisdiction filter values. Multi-word
// cues come first so "british columbia" wins over a later "canada" cue.
var jurisdictionCues = []struct {
	cue          string
	jurisdiction string
}{
	{"british columbia", "british_columbia"},
	{"new brunswick", "new_brunswick"},
	{"nova scotia", "nova_scotia"},
	{"prince edward island", "prince_edward_island"},
	{"northwest territories", "northwest_territories"},
	{"newfoundland", "newfoundland_and_labrador"},
	{"saskatchewan", "saskatchewan"},
	{"ontario", "ontario"},
	{"quebec", "quebec"},
	{"alberta", "alberta"},
	{"manitoba", "manitoba"},
	{"yukon", "yukon"},
	{"nunavut", "nunavut"},
	{"federal", "federal"},
	{"canada", "federal"},
	{"canadian", "federal"},
}

var (
	regulationCuePattern = regexp.MustCompile(`(?i)\bwhich regulations?\b|\bregulations? (?:made )?under\b|\bun règlement\b`)
	actCuePattern        = regexp.MustCompile(`(?i)\bwhich (?:acts?|statutes?)\b|\bstatutes?\b`)

	betweenYearsPattern = regexp.MustCompile(`(?i)\bbetween\s+(\d{4})\s+and\s+(\d{4})\b`)
	asOfYearPattern     = regexp.MustCompile(`(?i)\bas of\s+(\d{4})\b`)
	sinceYearPattern    = regexp.MustCompile(`(?i)\b(?:in force since|effective since|since)\s+(\d{4})\b`)
	beforeYearPattern   = regexp.MustCompile(`(?i)\bbefore\s+(\d{4})\b`)
)

// deriveFilters builds retrieval filters from jurisdiction, document type,
// and effective-date cues in the question.
func deriveFilters(text string) model.Filters {
	var f model.Filters

	folded := fold(text)
	for _, c := range jurisdictionCues {
		if strings.Contains(folded, c.cue) {
			f.Jurisdiction = c.jurisdiction
			break
		}
	}

	switch {
	case regulationCuePattern.MatchString(text):
		f.DocType = "regulation"
	case actCuePattern.MatchString(text):
		f.DocType = "act"
	}

	yearStart := func(y int) *time.Time {
		t := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}
	yearEnd := func(y int) *time.Time {
		t := time.Date(y, 12, 31, 23, 59, 59, 0, time.UTC)
		return &t
	}

	switch {
	case betweenYearsPattern.MatchString(text):
		m := betweenYearsPattern.FindStringSubmatch(text)
		f.EffectiveFrom = yearStart(atoiYear(m[1]))
		f.EffectiveTo = yearEnd(atoiYear(m[2]))
	case asOfYearPattern.MatchString(text):
		m := asOfYearPattern.FindStringSubmatch(text)
		f.EffectiveFrom = yearStart(atoiYear(m[1]))
		f.EffectiveTo = yearEnd(atoiYear(m[1]))
	case sinceYearPattern.MatchString(text):
		m := sinceYearPattern.FindStringSubmatch(text)
		f.EffectiveFrom = yearStart(atoiYear(m[1]))
	case beforeYearPattern.MatchString(text):
		m := beforeYearPattern.FindStringSubmatch(text)
		f.EffectiveTo = yearStart(atoiYear(m[1]))
	}

	return f
}

// atoiYear parses a 4-digit year already vetted by the calling pattern.
func atoiYear(s string) int {
	y := 0
	for _, r := range s {
		y = y*10 + int(r-'0')
	}
	return y
}
