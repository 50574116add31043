package decision

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/storyforge/internal/model"
)

// defaultSnapshotLimit caps how much page HTML is sent per decision.
const defaultSnapshotLimit = 12000

// systemPrompt is the instruction set sent with every decision request.
// The JSON shapes here are the wire contract Parse expects.
const systemPrompt = `You are a web navigation agent. You are given a user story, the actions taken so far, and the current page HTML. Choose exactly ONE next action that moves the user story forward.

Return ONLY valid JSON matching one of these shapes, no markdown, no commentary:
{"action":"click","target":"<css selector>"}
{"action":"type","target":"<css selector>","value":"<text to type>"}
{"action":"done","reason":"<one line: why the story is complete>"}

Rules:
- target must be a CSS selector that matches an element present in the HTML shown
- prefer selectors built from data-testid, aria-label, id, or name attributes
- type into inputs before clicking buttons that submit them
- return done as soon as the user story is satisfied, never before`

// userPrompt renders the decision request for one loop iteration.
func userPrompt(q Query, snapshotLimit int) string {
	if snapshotLimit <= 0 {
		snapshotLimit = defaultSnapshotLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User story: %s\n\n", q.UseCase)

	if len(q.History) == 0 {
		b.WriteString("Actions so far: none\n\n")
	} else {
		b.WriteString("Actions so far:\n")
		for i, d := range q.History {
			fmt.Fprintf(&b, "%d. %s\n", i+1, d.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("Current page HTML:\n")
	b.WriteString(truncate(q.Snapshot, snapshotLimit))
	b.WriteString("\n")
	return b.String()
}

// truncate shortens s to max bytes on a rune boundary, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "\n... (truncated)"
}

// Query carries everything the decider sees for one decision.
type Query struct {
	UseCase  string
	Snapshot string
	History  []model.Decision
}
