// Package locator converts captured journey snapshots into a ranked,
// deduplicated set of stable element locators.
package locator

import (
	"errors"
	"fmt"

	"github.com/ppiankov/storyforge/internal/model"
)

// ErrNoElements means no snapshot yielded a single identifiable
// element. A plan built over zero locators is meaningless, so the
// stage fails instead of returning an empty set.
var ErrNoElements = errors.New("no identifiable elements found in journey")

// Extract walks every snapshot in step order and returns the ranked
// locator set. Locators are deduplicated by selector expression; the
// first sighting wins and its metadata is never overwritten.
func Extract(journey model.Journey) ([]model.Locator, error) {
	var out []model.Locator
	seen := make(map[string]bool)

	for _, step := range journey.Steps {
		found, err := scan(step.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("step %d: parse snapshot: %w", step.Index, err)
		}
		for _, l := range found {
			if seen[l.Selector] {
				continue
			}
			seen[l.Selector] = true
			out = append(out, l)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoElements
	}
	return out, nil
}
