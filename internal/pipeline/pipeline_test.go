package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/browser"
	"github.com/ppiankov/storyforge/internal/decision"
	"github.com/ppiankov/storyforge/internal/history"
	"github.com/ppiankov/storyforge/internal/locator"
	"github.com/ppiankov/storyforge/internal/model"
	"github.com/ppiankov/storyforge/internal/navigate"
)

const storePage = `<html><body>
<input data-testid="search-input">
<button aria-label="Search">Go</button>
<div role="link">MacBook Pro</div>
<button id="btn-cart">Add to Cart</button>
</body></html>`

const storeStory = "Search for 'laptop', select first product, add to cart"
const storeURL = "https://demo.opencart.com/"

func TestRunGeneratesFromStory(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	hist := openHistory(t)
	session := &fakeSession{pages: []string{storePage}}
	dec := &scriptedDecider{decisions: []model.Decision{
		{Kind: model.DecisionType, Target: "[data-testid=search-input]", Value: "laptop"},
		{Kind: model.DecisionClick, Target: "[aria-label=Search]"},
		{Kind: model.DecisionClick, Target: "a"},
		{Kind: model.DecisionClick, Target: "#btn-cart"},
		{Kind: model.DecisionDone, Reason: "cart updated"},
	}}

	ctrl := New(navigate.NewAgent(dec), factoryFor(session), store, WithHistory(hist))
	state, err := ctrl.Run(context.Background(), storeURL, storeStory)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Status() != model.RunDone {
		t.Fatalf("status = %q, want done", state.Status())
	}
	if !session.closed {
		t.Error("browser session not released")
	}
	if state.Journey.Len() != 5 || state.Journey.Termination != model.TerminatedDone {
		t.Errorf("journey: %d steps, termination %q", state.Journey.Len(), state.Journey.Termination)
	}

	wantSelectors := []string{
		"page.getByTestId('search-input')",
		"page.getByLabel('Search')",
		"page.getByRole('link', { name: 'MacBook Pro' })",
		"page.locator('#btn-cart')",
	}
	if len(state.Locators) != len(wantSelectors) {
		t.Fatalf("locators = %d, want %d", len(state.Locators), len(wantSelectors))
	}
	wantConf := []model.Confidence{
		model.ConfidenceHigh, model.ConfidenceHigh,
		model.ConfidenceMedium, model.ConfidenceMedium,
	}
	for i, l := range state.Locators {
		if l.Selector != wantSelectors[i] {
			t.Errorf("locator %d = %q, want %q", i, l.Selector, wantSelectors[i])
		}
		if l.Confidence != wantConf[i] {
			t.Errorf("locator %d confidence = %q, want %q", i, l.Confidence, wantConf[i])
		}
	}

	if len(state.Scenarios) != 1 {
		t.Fatalf("scenarios = %d, want 1", len(state.Scenarios))
	}
	steps := state.Scenarios[0].Steps
	if len(steps) != 5 {
		t.Fatalf("steps = %d, want given + four when", len(steps))
	}
	if steps[0].Kind != model.StepGiven || steps[0].Value != storeURL {
		t.Errorf("opening step = %+v, want given carrying the url", steps[0])
	}
	for i, ref := range wantSelectors {
		step := steps[i+1]
		if step.Kind != model.StepWhen || step.LocatorRef != ref {
			t.Errorf("step %d = %+v, want when bound to %q", i+1, step, ref)
		}
	}
	if steps[1].Value != "laptop" {
		t.Errorf("fill step value = %q, want laptop", steps[1].Value)
	}

	// The generated source uses exactly the extracted selectors.
	for _, sel := range wantSelectors {
		if !strings.Contains(state.TestSource, sel) {
			t.Errorf("test source missing %q", sel)
		}
	}
	if n := strings.Count(state.TestSource, "page.getBy"); n != 3 {
		t.Errorf("page.getBy occurrences = %d, want 3", n)
	}
	if n := strings.Count(state.TestSource, "page.locator"); n != 1 {
		t.Errorf("page.locator occurrences = %d, want 1", n)
	}

	runDir := filepath.Join(store.Root(), state.RunID)
	for _, name := range []string{
		artifact.JourneyFile,
		artifact.LocatorsFile,
		artifact.ScenariosFile,
		artifact.SummaryFile,
		"search-for-laptop-select-first-product-add-to-cart.spec.ts",
	} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}

	sum, err := store.ReadSummary(state.RunID)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if sum.Status != model.RunDone || len(sum.Artifacts) != 4 {
		t.Errorf("summary = %+v, want done with 4 artifacts", sum)
	}

	rec, ok, err := hist.Get(state.RunID)
	if err != nil || !ok {
		t.Fatalf("history.Get: ok=%v err=%v", ok, err)
	}
	if rec.Status != model.RunDone || rec.TestFile == "" {
		t.Errorf("history record = %+v, want done with test file", rec)
	}
}

func TestRunFailsWhenNoLocatorsFound(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	hist := openHistory(t)
	session := &fakeSession{pages: []string{`<html><body><span>hi</span></body></html>`}}
	dec := &scriptedDecider{decisions: []model.Decision{{Kind: model.DecisionDone}}}

	ctrl := New(navigate.NewAgent(dec), factoryFor(session), store, WithHistory(hist))
	state, err := ctrl.Run(context.Background(), "https://example.test/", "buy a thing")
	if err == nil {
		t.Fatal("expected extract stage failure")
	}

	var sf *StageFailure
	if !errors.As(err, &sf) {
		t.Fatalf("error type = %T, want *StageFailure", err)
	}
	if sf.Stage != model.StageExtract || sf.Kind != KindLocatorExtractionEmpty {
		t.Errorf("failure = %s/%s, want extract/locator_extraction_empty", sf.Stage, sf.Kind)
	}
	if !errors.Is(err, locator.ErrNoElements) {
		t.Error("wrapped error should match locator.ErrNoElements")
	}
	if state.StageError == nil || state.StageError.Stage != model.StageExtract {
		t.Errorf("state.StageError = %+v", state.StageError)
	}
	if !session.closed {
		t.Error("browser session not released on failure")
	}

	// The journey survives for diagnosis; nothing downstream exists.
	runDir := filepath.Join(store.Root(), state.RunID)
	if _, err := os.Stat(filepath.Join(runDir, artifact.JourneyFile)); err != nil {
		t.Errorf("journey artifact: %v", err)
	}
	for _, name := range []string{artifact.LocatorsFile, artifact.ScenariosFile} {
		if _, err := os.Stat(filepath.Join(runDir, name)); !os.IsNotExist(err) {
			t.Errorf("artifact %s should not exist, stat err = %v", name, err)
		}
	}
	if specs, _ := filepath.Glob(filepath.Join(runDir, "*.spec.ts")); len(specs) != 0 {
		t.Errorf("no test source expected, found %v", specs)
	}

	sum, err := store.ReadSummary(state.RunID)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if sum.Status != model.RunFailed || sum.StageError == nil {
		t.Errorf("summary = %+v, want failed with stage error", sum)
	}
	if !strings.Contains(sum.StageError.Detail, KindLocatorExtractionEmpty) {
		t.Errorf("summary detail = %q, want kind named", sum.StageError.Detail)
	}

	rec, ok, err := hist.Get(state.RunID)
	if err != nil || !ok {
		t.Fatalf("history.Get: ok=%v err=%v", ok, err)
	}
	if rec.Status != model.RunFailed || rec.Stage != model.StageExtract {
		t.Errorf("history record = %+v, want failed at extract", rec)
	}
}

func TestRunPersistsPartialJourneyOnDecisionFailure(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	session := &fakeSession{pages: []string{storePage}}
	dec := &scriptedDecider{
		decisions: []model.Decision{{Kind: model.DecisionClick, Target: "#btn-cart"}},
		errs:      []error{nil, &decision.FormatError{Raw: "garbage", Reason: "no json object"}},
	}

	ctrl := New(navigate.NewAgent(dec), factoryFor(session), store)
	state, err := ctrl.Run(context.Background(), storeURL, storeStory)
	if err == nil {
		t.Fatal("expected navigate stage failure")
	}

	var sf *StageFailure
	if !errors.As(err, &sf) {
		t.Fatalf("error type = %T", err)
	}
	if sf.Stage != model.StageNavigate || sf.Kind != KindDecisionFormat {
		t.Errorf("failure = %s/%s, want navigate/decision_format", sf.Stage, sf.Kind)
	}
	var formatErr *decision.FormatError
	if !errors.As(err, &formatErr) {
		t.Error("wrapped FormatError not reachable")
	}
	if !session.closed {
		t.Error("browser session not released")
	}

	if state.Journey.Len() != 1 {
		t.Fatalf("journey = %d steps, want the one completed step", state.Journey.Len())
	}
	data, err := os.ReadFile(filepath.Join(store.Root(), state.RunID, artifact.JourneyFile))
	if err != nil {
		t.Fatalf("partial journey not persisted: %v", err)
	}
	if !strings.Contains(string(data), `click target="#btn-cart"`) {
		t.Errorf("journey file missing the completed step:\n%s", data)
	}
}

func TestRunFailsWhenBrowserUnavailable(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	factory := browser.FactoryFunc(func(ctx context.Context) (browser.Session, error) {
		return nil, errors.New("chrome not found")
	})
	dec := &scriptedDecider{}

	ctrl := New(navigate.NewAgent(dec), factory, store)
	state, err := ctrl.Run(context.Background(), storeURL, storeStory)
	if err == nil {
		t.Fatal("expected navigate stage failure")
	}

	var sf *StageFailure
	if !errors.As(err, &sf) {
		t.Fatalf("error type = %T", err)
	}
	if sf.Stage != model.StageNavigate || sf.Kind != KindInternal {
		t.Errorf("failure = %s/%s, want navigate/internal", sf.Stage, sf.Kind)
	}
	if dec.calls != 0 {
		t.Errorf("decider called %d times without a browser", dec.calls)
	}
	if state.Journey.Len() != 0 {
		t.Errorf("journey = %d steps, want none", state.Journey.Len())
	}

	// Summary still lands, journey file does not.
	if _, err := store.ReadSummary(state.RunID); err != nil {
		t.Errorf("ReadSummary: %v", err)
	}
	journeyPath := filepath.Join(store.Root(), state.RunID, artifact.JourneyFile)
	if _, err := os.Stat(journeyPath); !os.IsNotExist(err) {
		t.Errorf("journey file should not exist, stat err = %v", err)
	}
}

func TestRunContinuesAfterNoTargetTermination(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	session := &fakeSession{
		pages:   []string{storePage},
		missing: map[string]bool{"#checkout": true},
	}
	dec := &scriptedDecider{decisions: []model.Decision{
		{Kind: model.DecisionClick, Target: "#checkout"},
	}}

	ctrl := New(navigate.NewAgent(dec), factoryFor(session), store)
	state, err := ctrl.Run(context.Background(), storeURL, storeStory)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Journey.Termination != model.TerminatedNoTarget {
		t.Errorf("termination = %q, want no_target", state.Journey.Termination)
	}
	// The stranded journey still feeds the remaining stages.
	if len(state.Locators) == 0 || len(state.Scenarios) == 0 || state.TestSource == "" {
		t.Errorf("downstream stages skipped: %d locators, %d scenarios", len(state.Locators), len(state.Scenarios))
	}
	sum, err := store.ReadSummary(state.RunID)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if sum.Status != model.RunDone || sum.Termination != model.TerminatedNoTarget {
		t.Errorf("summary = %+v, want done with no_target termination", sum)
	}
}

// fakeSession is an in-memory browser.Session over scripted snapshots.
type fakeSession struct {
	pages   []string
	pos     int
	missing map[string]bool
	closed  bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { s.pos = 0; return nil }

func (s *fakeSession) Click(ctx context.Context, target string) error {
	if s.missing[target] {
		return &browser.NoTargetError{Target: target}
	}
	s.advance()
	return nil
}

func (s *fakeSession) Type(ctx context.Context, target, value string) error {
	if s.missing[target] {
		return &browser.NoTargetError{Target: target}
	}
	s.advance()
	return nil
}

func (s *fakeSession) Snapshot(ctx context.Context) (string, error) { return s.pages[s.pos], nil }

func (s *fakeSession) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func (s *fakeSession) advance() {
	if s.pos < len(s.pages)-1 {
		s.pos++
	}
}

func factoryFor(s *fakeSession) browser.Factory {
	return browser.FactoryFunc(func(ctx context.Context) (browser.Session, error) {
		return s, nil
	})
}

// scriptedDecider replays decisions in order; errs, when present, is
// consulted first at the same index. Past the script it returns done.
type scriptedDecider struct {
	decisions []model.Decision
	errs      []error
	calls     int
}

func (d *scriptedDecider) Decide(ctx context.Context, q decision.Query) (model.Decision, error) {
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return model.Decision{}, d.errs[i]
	}
	if i < len(d.decisions) {
		return d.decisions[i], nil
	}
	return model.Decision{Kind: model.DecisionDone}, nil
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	h, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}
