package synthesis

import (
	"fmt"
	"strings"

	"github.com/jurisearch/statuteqa/internal/model"
)

// systemPrompt pins the generator to the supplied sources. The pipeline
// never trusts it to comply: the validator re-checks every citation.
const systemPrompt = `You are a legal research assistant answering questions about Canadian statutes and regulations.

Rules you must follow without exception:
- Answer ONLY from the numbered sources provided. Never use outside knowledge.
- Every claim and every requirement must cite at least one source by its reference id, for example ["S1"] or ["S2","S3"].
- If the sources do not support an answer, return an empty claims list and state what is missing in limitations.
- Quote obligations and conditions the way the provisions state them; do not soften statutory language.
- When a conflict between sources is flagged, address it in conflict_notes instead of silently picking a side.
- Respond with a single JSON object matching the requested schema. No prose before or after it.`

// answerSchema is inlined into the user prompt so schema drift shows up in
// one place.
const answerSchema = `{
  "direct": "<one- or two-sentence direct answer>",
  "explanation": "<short explanation grounded in the cited sources>",
  "claims": [{"text": "<factual statement>", "refs": ["S1"]}],
  "requirements": [{"text": "<condition or obligation>", "refs": ["S2"]}],
  "conflict_notes": ["<how a flagged conflict affects the answer>"],
  "self_assessment": {"level": "high|medium|low", "justification": "<why>"},
  "limitations": ["<gaps, caveats, or removed material>"]
}`

// buildPrompt assembles the user message: question, ref-tagged sources,
// flagged conflicts, and the output schema.
func buildPrompt(q *model.Question, fc *model.FusedContext, findings []model.ConflictFinding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(q.Raw))
	b.WriteString("Sources:\n")
	b.WriteString(renderContext(fc))
	b.WriteString("\n\n")

	if block := renderFindings(findings); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}

	b.WriteString("Respond with one JSON object in exactly this schema:\n")
	b.WriteString(answerSchema)

	return b.String()
}

// renderContext tags every hit with its stable reference id so the model
// can cite it.
func renderContext(fc *model.FusedContext) string {
	var b strings.Builder
	for i := range fc.Hits {
		h := &fc.Hits[i]
		fmt.Fprintf(&b, "[%s] %s", h.Ref, h.Citation.String())
		if span := renderSpan(h.Effective); span != "" {
			fmt.Fprintf(&b, " (in force %s)", span)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(h.Snippet))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func renderSpan(r model.EffectiveRange) string {
	const layout = "2006-01-02"
	switch {
	case r.From != nil && r.To != nil:
		return r.From.Format(layout) + " to " + r.To.Format(layout)
	case r.From != nil:
		return "since " + r.From.Format(layout)
	case r.To != nil:
		return "until " + r.To.Format(layout)
	default:
		return ""
	}
}

func renderFindings(findings []model.ConflictFinding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Known conflicts between sources:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Description, f.Kind)
	}
	return b.String()
}
