// Package scenario plans BDD test cases: it decomposes the user story
// into ordered intents and binds every interaction to a locator
// extracted from the journey.
package scenario

import (
	"fmt"
	"strings"

	"github.com/ppiankov/storyforge/internal/model"
)

// UnresolvedStepError means an interaction intent matched no locator.
// Planning fails rather than silently dropping the step.
type UnresolvedStepError struct {
	Intent string
}

func (e *UnresolvedStepError) Error() string {
	return fmt.Sprintf("no locator matches intent %q", e.Intent)
}

// Plan turns the user story into scenarios bound to the locator set.
// Every returned scenario opens with a synthesized navigation step to
// url. Each non-empty LocatorRef is guaranteed to resolve in locators.
func Plan(url, useCase string, locators []model.Locator) ([]model.Scenario, error) {
	var scenarios []model.Scenario

	for _, intents := range decompose(useCase) {
		b := &binder{locators: locators, used: make(map[string]bool)}

		sc := model.Scenario{
			Title: scenarioTitle(intents),
			Steps: []model.Step{{
				Kind:  model.StepGiven,
				Text:  fmt.Sprintf("the user is on %q", url),
				Value: url,
			}},
		}

		for _, in := range intents {
			steps, err := b.bind(in)
			if err != nil {
				return nil, err
			}
			sc.Steps = append(sc.Steps, steps...)
		}
		scenarios = append(scenarios, sc)
	}

	if len(scenarios) == 0 {
		return nil, &UnresolvedStepError{Intent: strings.TrimSpace(useCase)}
	}

	// Re-check the cross-stage contract before handing scenarios on.
	if err := model.ValidateRefs(scenarios, locators); err != nil {
		return nil, err
	}
	return scenarios, nil
}

// scenarioTitle reconstructs the sentence the intents came from.
func scenarioTitle(intents []intent) string {
	parts := make([]string, 0, len(intents))
	for _, in := range intents {
		parts = append(parts, in.text)
	}
	return strings.Join(parts, ", ")
}

// typeableKinds can receive keyboard input.
var typeableKinds = map[string]bool{
	"input":     true,
	"textbox":   true,
	"searchbox": true,
	"combobox":  true,
}

// clickableKinds can be activated by a click.
var clickableKinds = map[string]bool{
	"button":   true,
	"link":     true,
	"menuitem": true,
	"checkbox": true,
	"radio":    true,
}

var confidenceRank = map[model.Confidence]int{
	model.ConfidenceHigh:   0,
	model.ConfidenceMedium: 1,
	model.ConfidenceLow:    2,
}

// binder matches intents against one run's locator set, tracking which
// locators ordinal fallbacks have consumed.
type binder struct {
	locators []model.Locator
	used     map[string]bool
}

// bind converts one intent into scenario steps.
func (b *binder) bind(in intent) ([]model.Step, error) {
	switch in.kind {
	case intentGiven:
		return []model.Step{{Kind: model.StepGiven, Text: in.text}}, nil

	case intentThen:
		// Assertions may describe an outcome with no element; an
		// unmatched Then is a plain narrative step, not a failure.
		step := model.Step{Kind: model.StepThen, Text: in.text, Value: in.value}
		if l, ok := b.bestMatch(in.tokens, nil); ok {
			step.LocatorRef = l.Selector
			b.used[l.Selector] = true
		}
		return []model.Step{step}, nil

	default:
		return b.bindInteraction(in)
	}
}

// bindInteraction resolves a When intent to one or two bound steps.
func (b *binder) bindInteraction(in intent) ([]model.Step, error) {
	// A quoted literal means keyboard input: bind the best typeable
	// locator, then a distinct clickable one when the intent also
	// names it (submit follows fill).
	if in.value != "" {
		target, ok := b.bestMatch(in.tokens, func(l model.Locator) bool {
			return typeableKinds[kindOf(l)]
		})
		if !ok {
			target, ok = b.firstUnused(func(l model.Locator) bool {
				return typeableKinds[kindOf(l)]
			}, 0)
		}
		if !ok {
			return nil, &UnresolvedStepError{Intent: in.text}
		}
		b.used[target.Selector] = true

		steps := []model.Step{{
			Kind:       model.StepWhen,
			Text:       in.text,
			LocatorRef: target.Selector,
			Value:      in.value,
		}}

		if submit, ok := b.bestMatch(in.tokens, func(l model.Locator) bool {
			return clickableKinds[kindOf(l)] && l.Selector != target.Selector
		}); ok {
			b.used[submit.Selector] = true
			steps = append(steps, model.Step{
				Kind:       model.StepWhen,
				Text:       fmt.Sprintf("click %s", submit.Description),
				LocatorRef: submit.Selector,
			})
		}
		return steps, nil
	}

	target, ok := b.bestMatch(in.tokens, nil)
	if !ok {
		target, ok = b.roleFallback(in.tokens)
	}
	if !ok {
		return nil, &UnresolvedStepError{Intent: in.text}
	}
	b.used[target.Selector] = true

	return []model.Step{{
		Kind:       model.StepWhen,
		Text:       in.text,
		LocatorRef: target.Selector,
	}}, nil
}

// bestMatch scores locators by token hits against description and
// selector text. Ties go to higher confidence, then first occurrence.
func (b *binder) bestMatch(tokens []string, filter func(model.Locator) bool) (model.Locator, bool) {
	var best model.Locator
	bestScore := 0
	bestRank := len(confidenceRank)

	for _, l := range b.locators {
		if filter != nil && !filter(l) {
			continue
		}
		score := matchScore(l, tokens)
		if score == 0 {
			continue
		}
		rank := confidenceRank[l.Confidence]
		if score > bestScore || (score == bestScore && rank < bestRank) {
			best = l
			bestScore = score
			bestRank = rank
		}
	}
	return best, bestScore > 0
}

func matchScore(l model.Locator, tokens []string) int {
	haystack := strings.ToLower(l.Description + " " + l.Selector)
	score := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			score++
		}
	}
	return score
}

// roleFallback binds intents that name an element class rather than
// element text: link-like nouns and ordinals pick the n-th unused
// link, button-like nouns pick the first unused button.
func (b *binder) roleFallback(tokens []string) (model.Locator, bool) {
	n, hasOrdinal := ordinalOf(tokens)

	if hasOrdinal || hasAny(tokens, "product", "result", "item", "link", "article", "entry", "row") {
		if l, ok := b.firstUnused(func(l model.Locator) bool {
			return kindOf(l) == "link"
		}, n); ok {
			return l, true
		}
	}
	if hasAny(tokens, "button", "submit", "confirm", "save", "ok") {
		if l, ok := b.firstUnused(func(l model.Locator) bool {
			return kindOf(l) == "button"
		}, 0); ok {
			return l, true
		}
	}
	return model.Locator{}, false
}

// firstUnused returns the n-th locator (0-based) passing the filter
// that no step has bound yet.
func (b *binder) firstUnused(filter func(model.Locator) bool, n int) (model.Locator, bool) {
	seen := 0
	for _, l := range b.locators {
		if b.used[l.Selector] || !filter(l) {
			continue
		}
		if seen == n {
			return l, true
		}
		seen++
	}
	return model.Locator{}, false
}

// kindOf is the element-kind word the extractor leads descriptions with.
func kindOf(l model.Locator) string {
	d := l.Description
	if i := strings.IndexByte(d, ' '); i > 0 {
		return d[:i]
	}
	return d
}

func hasAny(tokens []string, words ...string) bool {
	for _, t := range tokens {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}
