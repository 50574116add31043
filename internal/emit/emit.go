// Package emit renders scenarios and locators into Playwright test
// source. Rendering is purely syntactic: one scenario becomes one test
// case, every emitted selector comes verbatim from the locator set,
// and identical input yields byte-identical output.
package emit

import (
	"fmt"
	"strings"

	"github.com/ppiankov/storyforge/internal/model"
)

// Options configures rendering.
type Options struct {
	// StorageState, when set, emits a test.use block loading the
	// given Playwright storage-state file (pre-authenticated runs).
	StorageState string
}

// Render produces the test source for one run. The locator set is the
// closed world: a step referencing anything outside it is an error.
func Render(useCase string, scenarios []model.Scenario, locators []model.Locator, opts Options) (string, error) {
	// Construction upstream already guarantees this; re-check so a
	// dangling ref can never reach generated code.
	if err := model.ValidateRefs(scenarios, locators); err != nil {
		return "", fmt.Errorf("refusing to emit: %w", err)
	}

	var b strings.Builder
	b.WriteString("import { test, expect } from '@playwright/test';\n\n")

	if opts.StorageState != "" {
		fmt.Fprintf(&b, "test.use({ storageState: %s });\n\n", jsString(opts.StorageState))
	}

	fmt.Fprintf(&b, "test.describe(%s, () => {\n", jsString(useCase))
	for i, sc := range scenarios {
		if i > 0 {
			b.WriteString("\n")
		}
		renderScenario(&b, sc)
	}
	b.WriteString("});\n")
	return b.String(), nil
}

func renderScenario(b *strings.Builder, sc model.Scenario) {
	fmt.Fprintf(b, "  test(%s, async ({ page }) => {\n", jsString(sc.Title))
	for _, st := range sc.Steps {
		fmt.Fprintf(b, "    // %s %s\n", kindTitle(st.Kind), commentText(st.Text))

		switch {
		case st.Kind == model.StepGiven && st.Value != "":
			fmt.Fprintf(b, "    await page.goto(%s);\n", jsString(st.Value))
		case st.LocatorRef == "":
			// Narrative step: the comment is the rendering.
		case st.Kind == model.StepWhen && st.Value != "":
			fmt.Fprintf(b, "    await %s.fill(%s);\n", st.LocatorRef, jsString(st.Value))
		case st.Kind == model.StepWhen:
			fmt.Fprintf(b, "    await %s.click();\n", st.LocatorRef)
		case st.Kind == model.StepThen && st.Value != "":
			fmt.Fprintf(b, "    await expect(%s).toContainText(%s);\n", st.LocatorRef, jsString(st.Value))
		case st.Kind == model.StepThen:
			fmt.Fprintf(b, "    await expect(%s).toBeVisible();\n", st.LocatorRef)
		}
	}
	b.WriteString("  });\n")
}

func kindTitle(k model.StepKind) string {
	switch k {
	case model.StepGiven:
		return "Given"
	case model.StepWhen:
		return "When"
	case model.StepThen:
		return "Then"
	default:
		return string(k)
	}
}

// commentText keeps step text on a single comment line.
func commentText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// jsString renders s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}
