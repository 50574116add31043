package scenario

import (
	"errors"
	"testing"

	"github.com/ppiankov/storyforge/internal/model"
)

// storeFront mirrors a minimal shop page after extraction: a search
// input, a search button, one product link, an add-to-cart button.
func storeFront() []model.Locator {
	return []model.Locator{
		{Selector: "page.getByTestId('search-input')", Source: model.SourceTestID, Confidence: model.ConfidenceHigh, Description: "input"},
		{Selector: "page.getByLabel('Search')", Source: model.SourceAriaLabel, Confidence: model.ConfidenceHigh, Description: `button "Search"`},
		{Selector: "page.getByRole('link', { name: 'MacBook Pro' })", Source: model.SourceRole, Confidence: model.ConfidenceMedium, Description: `link "MacBook Pro"`},
		{Selector: "page.locator('#btn-cart')", Source: model.SourceID, Confidence: model.ConfidenceMedium, Description: `button "Add to Cart"`},
	}
}

func TestPlanBindsStoreFrontStory(t *testing.T) {
	scenarios, err := Plan(
		"https://demo.opencart.com/",
		"Search for 'laptop', select first product, add to cart",
		storeFront(),
	)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(scenarios))
	}

	steps := scenarios[0].Steps
	if len(steps) != 5 {
		t.Fatalf("expected given + 4 when steps, got %d: %+v", len(steps), steps)
	}

	if steps[0].Kind != model.StepGiven || steps[0].Value != "https://demo.opencart.com/" {
		t.Errorf("scenario must open with the navigation step, got %+v", steps[0])
	}

	wantRefs := []string{
		"page.getByTestId('search-input')",
		"page.getByLabel('Search')",
		"page.getByRole('link', { name: 'MacBook Pro' })",
		"page.locator('#btn-cart')",
	}
	for i, ref := range wantRefs {
		st := steps[i+1]
		if st.Kind != model.StepWhen {
			t.Errorf("step %d: expected when, got %q", i+1, st.Kind)
		}
		if st.LocatorRef != ref {
			t.Errorf("step %d: expected ref %q, got %q", i+1, ref, st.LocatorRef)
		}
	}

	if steps[1].Value != "laptop" {
		t.Errorf("search step must carry the quoted input, got %q", steps[1].Value)
	}
	if steps[2].Value != "" {
		t.Errorf("submit step must not carry a value, got %q", steps[2].Value)
	}
}

func TestPlanFailsOnUnresolvableIntent(t *testing.T) {
	_, err := Plan("https://example.test", "teleport to the moon", storeFront())
	if err == nil {
		t.Fatal("expected planning failure")
	}
	var unresolved *UnresolvedStepError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected *UnresolvedStepError, got %T: %v", err, err)
	}
	if unresolved.Intent != "teleport to the moon" {
		t.Errorf("error must name the intent, got %q", unresolved.Intent)
	}
}

func TestPlanSentencesBecomeScenarios(t *testing.T) {
	scenarios, err := Plan(
		"https://example.test",
		"Search for 'tea'. Add to cart",
		storeFront(),
	)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	for i, sc := range scenarios {
		if sc.Steps[0].Kind != model.StepGiven || sc.Steps[0].Value == "" {
			t.Errorf("scenario %d must open with the navigation step, got %+v", i, sc.Steps[0])
		}
	}
}

func TestPlanAssertionsNeedNoLocator(t *testing.T) {
	scenarios, err := Plan(
		"https://example.test",
		"Add to cart and verify the greeting banner is displayed",
		storeFront(),
	)
	if err != nil {
		t.Fatalf("assertions with no matching element must not fail planning: %v", err)
	}

	steps := scenarios[0].Steps
	last := steps[len(steps)-1]
	if last.Kind != model.StepThen {
		t.Fatalf("expected trailing then step, got %+v", last)
	}
	if last.LocatorRef != "" {
		t.Errorf("unmatched assertion must carry no ref, got %q", last.LocatorRef)
	}
}

func TestPlanBindsAssertionToMatchingElement(t *testing.T) {
	locators := append(storeFront(), model.Locator{
		Selector:    "page.locator('#cart-total')",
		Source:      model.SourceID,
		Confidence:  model.ConfidenceMedium,
		Description: `div "Cart total"`,
	})

	scenarios, err := Plan("https://example.test", "Add to cart, check the cart total is shown", locators)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	steps := scenarios[0].Steps
	last := steps[len(steps)-1]
	if last.Kind != model.StepThen {
		t.Fatalf("expected then step, got %+v", last)
	}
	if last.LocatorRef != "page.locator('#cart-total')" {
		t.Errorf("assertion must bind the matching element, got %q", last.LocatorRef)
	}
}

func TestPlanTieBreaksOnConfidence(t *testing.T) {
	locators := []model.Locator{
		{Selector: "page.locator('button.search')", Source: model.SourceCSS, Confidence: model.ConfidenceLow, Description: `button "Search"`},
		{Selector: "page.getByLabel('Search')", Source: model.SourceAriaLabel, Confidence: model.ConfidenceHigh, Description: `button "Search"`},
	}

	scenarios, err := Plan("https://example.test", "hit the search button", locators)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	got := scenarios[0].Steps[1].LocatorRef
	if got != "page.getByLabel('Search')" {
		t.Errorf("equal scores must prefer higher confidence, got %q", got)
	}
}

func TestPlanTieBreaksOnFirstOccurrence(t *testing.T) {
	locators := []model.Locator{
		{Selector: "page.locator('#search-top')", Source: model.SourceID, Confidence: model.ConfidenceMedium, Description: `button "Search"`},
		{Selector: "page.locator('#search-bottom')", Source: model.SourceID, Confidence: model.ConfidenceMedium, Description: `button "Search"`},
	}

	scenarios, err := Plan("https://example.test", "hit the search button", locators)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	got := scenarios[0].Steps[1].LocatorRef
	if got != "page.locator('#search-top')" {
		t.Errorf("equal score and confidence must keep the first seen, got %q", got)
	}
}

func TestPlanOrdinalPicksNthLink(t *testing.T) {
	locators := []model.Locator{
		{Selector: "page.locator('a').nth(0)", Source: model.SourceCSS, Confidence: model.ConfidenceLow, Description: `link "Alpha"`},
		{Selector: "page.locator('a').nth(1)", Source: model.SourceCSS, Confidence: model.ConfidenceLow, Description: `link "Beta"`},
		{Selector: "page.locator('a').nth(2)", Source: model.SourceCSS, Confidence: model.ConfidenceLow, Description: `link "Gamma"`},
	}

	scenarios, err := Plan("https://example.test", "pick the second result", locators)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	got := scenarios[0].Steps[1].LocatorRef
	if got != "page.locator('a').nth(1)" {
		t.Errorf("ordinal must pick the n-th link, got %q", got)
	}
}

func TestPlanPreconditionsBecomeGivenSteps(t *testing.T) {
	scenarios, err := Plan("https://example.test", "On the storefront, add to cart", storeFront())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	steps := scenarios[0].Steps
	if len(steps) != 3 {
		t.Fatalf("expected nav given + story given + when, got %d: %+v", len(steps), steps)
	}
	if steps[1].Kind != model.StepGiven || steps[1].Text != "On the storefront" {
		t.Errorf("precondition must become a given step, got %+v", steps[1])
	}
	if steps[1].LocatorRef != "" {
		t.Errorf("preconditions bind no locator, got %q", steps[1].LocatorRef)
	}
}

func TestPlanRefsAlwaysResolve(t *testing.T) {
	locators := storeFront()
	scenarios, err := Plan(
		"https://demo.opencart.com/",
		"Search for 'laptop', select first product, add to cart. Check the cart is shown",
		locators,
	)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if err := model.ValidateRefs(scenarios, locators); err != nil {
		t.Errorf("planner output must satisfy referential integrity: %v", err)
	}
}
