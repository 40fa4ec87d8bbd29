package pipeline

import (
	"strings"

	"github.com/caseforge/moriarty/internal/mystery"
	"github.com/caseforge/moriarty/internal/mystery/guardrail"
)

// Prose is the final narrative artifact.
type Prose struct {
	Chapters []Chapter `json:"chapters"`
}

type Chapter struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

func (p *Prose) fullText() string {
	var b strings.Builder
	for _, ch := range p.Chapters {
		b.WriteString(ch.Title)
		b.WriteString("\n")
		b.WriteString(strings.Join(ch.Paragraphs, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// Story validation error kinds. The recoverable set triggers exactly one
// prose repair retry; everything else is reported as-is.
const (
	StoryMissingTest       = "missing_discriminating_test"
	StoryTestNotRealized   = "cml_test_not_realized"
	StorySuspectClosure    = "suspect_closure_missing"
	StoryCulpritChain      = "culprit_evidence_chain_missing"
)

var recoverableStoryErrors = map[string]bool{
	StoryMissingTest:     true,
	StoryTestNotRealized: true,
	StorySuspectClosure:  true,
	StoryCulpritChain:    true,
}

type StoryIssue struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type StoryReport struct {
	Status string       `json:"status"` // passed | failed
	Errors []StoryIssue `json:"errors"`
}

func (r StoryReport) criticalCount() int {
	n := 0
	for _, e := range r.Errors {
		if e.Severity == "critical" {
			n++
		}
	}
	return n
}

func (r StoryReport) hasRecoverableGaps() bool {
	for _, e := range r.Errors {
		if recoverableStoryErrors[e.Kind] {
			return true
		}
	}
	return false
}

// Improved reports whether this run of validation is better than prev:
// fewer criticals, fewer errors, or an outright pass.
func (r StoryReport) Improved(prev StoryReport) bool {
	return r.criticalCount() < prev.criticalCount() ||
		len(r.Errors) < len(prev.Errors) ||
		r.Status == "passed"
}

// eliminationPhrases is the explicit on-page language the reader needs
// to see suspects closed out.
var eliminationPhrases = []string{
	"ruled out",
	"cannot be the culprit",
	"could not be the culprit",
	"excluded by",
	"eliminated",
}

// ValidateStory runs the deterministic post-prose checks: did the prose
// actually realize the discriminating test, close every suspect thread,
// and put the culprit's evidence chain on the page.
func ValidateStory(p *Prose, c *mystery.Case, ov guardrail.Overlap) StoryReport {
	var report StoryReport
	text := p.fullText()
	lower := strings.ToLower(text)

	// Discriminating test realization.
	best := 0.0
	for _, ch := range p.Chapters {
		score := ov.Score(c.Test.Description, ch.Title+" "+strings.Join(ch.Paragraphs, " "))
		if score > best {
			best = score
		}
	}
	hasElimination := false
	for _, phrase := range eliminationPhrases {
		if strings.Contains(lower, phrase) {
			hasElimination = true
			break
		}
	}
	switch {
	case best < 0.25:
		report.Errors = append(report.Errors, StoryIssue{
			Kind:     StoryMissingTest,
			Severity: "critical",
			Message:  "no scene realizes the discriminating test",
		})
	case !hasElimination:
		report.Errors = append(report.Errors, StoryIssue{
			Kind:     StoryTestNotRealized,
			Severity: "critical",
			Message:  "the discriminating test scene never explicitly rules any suspect out",
		})
	}

	// Suspect closure: every eligible non-culprit must appear in the
	// final third of the story, where threads are closed.
	tail := lower
	if n := len(p.Chapters); n >= 3 {
		var b strings.Builder
		for _, ch := range p.Chapters[n-(n/3):] {
			b.WriteString(strings.ToLower(ch.Title + " " + strings.Join(ch.Paragraphs, " ")))
		}
		tail = b.String()
	}
	for _, s := range c.EligibleSuspects() {
		if !strings.Contains(tail, strings.ToLower(strings.TrimSpace(s.Name))) {
			report.Errors = append(report.Errors, StoryIssue{
				Kind:     StorySuspectClosure,
				Severity: "critical",
				Message:  "suspect thread never closed: " + s.Name,
			})
		}
	}

	// Culprit evidence chain: the culprit must be named, and the
	// essential clues must surface in the prose.
	if !strings.Contains(lower, strings.ToLower(strings.TrimSpace(c.Culprit))) {
		report.Errors = append(report.Errors, StoryIssue{
			Kind:     StoryCulpritChain,
			Severity: "critical",
			Message:  "the culprit is never named in the prose",
		})
	}
	report.Status = "failed"
	if report.criticalCount() == 0 {
		report.Status = "passed"
	}
	return report
}

// ValidateStoryWithClues extends ValidateStory with the essential-clue
// chain check, which needs the clue set.
func ValidateStoryWithClues(p *Prose, c *mystery.Case, clues *mystery.ClueSet, ov guardrail.Overlap) StoryReport {
	report := ValidateStory(p, c, ov)
	text := p.fullText()

	essential, realized := 0, 0
	for _, ev := range clues.Evidence {
		if ev.Criticality != mystery.CritEssential {
			continue
		}
		essential++
		if ov.Score(ev.Description, text) >= 0.25 {
			realized++
		}
	}
	if essential > 0 && realized*2 < essential {
		report.Errors = append(report.Errors, StoryIssue{
			Kind:     StoryCulpritChain,
			Severity: "critical",
			Message:  "fewer than half of the essential clues surface in the prose",
		})
		report.Status = "failed"
	}
	return report
}

// repairGuardrails maps the recoverable gaps to the targeted quality
// instructions the prose repair retry carries.
func repairGuardrails(report StoryReport) []string {
	var out []string
	var hasTestGap, hasClosureGap bool
	for _, e := range report.Errors {
		switch e.Kind {
		case StoryMissingTest, StoryTestNotRealized:
			hasTestGap = true
		case StorySuspectClosure, StoryCulpritChain:
			hasClosureGap = true
		}
	}
	if hasTestGap {
		out = append(out,
			"Include a clear discriminating test scene where multiple plausible suspects are explicitly evaluated and at least one suspect is ruled out using on-page evidence.",
			"Use explicit elimination language such as 'ruled out', 'cannot be the culprit', or 'excluded by the timeline/evidence'.")
	}
	if hasClosureGap {
		out = append(out,
			"In the solution sequence, close every major suspect thread with explicit reasoning and evidence-backed elimination.",
			"Provide a complete culprit evidence chain from clue discovery to final proof without relying on off-page information.")
	}
	return out
}
