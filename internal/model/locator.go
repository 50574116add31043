package model

// SourceAttribute identifies which page attribute produced a locator.
type SourceAttribute string

const (
	SourceTestID    SourceAttribute = "testid"
	SourceAriaLabel SourceAttribute = "aria-label"
	SourceRole      SourceAttribute = "role"
	SourceID        SourceAttribute = "id"
	SourceCSS       SourceAttribute = "css"
)

// sourceRank orders attributes by stability. Lower is better.
var sourceRank = map[SourceAttribute]int{
	SourceTestID:    0,
	SourceAriaLabel: 1,
	SourceRole:      2,
	SourceID:        3,
	SourceCSS:       4,
}

// SourcePriority returns the rank of an attribute for selection;
// unknown attributes rank below CSS fallback.
func SourcePriority(s SourceAttribute) int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return len(sourceRank)
}

// Confidence is the qualitative trust in a locator's stability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFor derives confidence from the source attribute. This is
// the only way confidence is assigned: testid and aria-label are
// author-owned and survive restyling; role and id are stable but
// shared or generated; a CSS fallback breaks on layout changes.
func ConfidenceFor(s SourceAttribute) Confidence {
	switch s {
	case SourceTestID, SourceAriaLabel:
		return ConfidenceHigh
	case SourceRole, SourceID:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Locator is a candidate automation handle for one page element.
// Selector values are unique within a run; slice order is first-seen
// order and is meaningful for downstream tie-breaks.
type Locator struct {
	Selector    string          `json:"selector"`
	Source      SourceAttribute `json:"source"`
	Confidence  Confidence      `json:"confidence"`
	Description string          `json:"description"`
}

// LocatorIndex builds a selector → Locator lookup.
func LocatorIndex(locators []Locator) map[string]Locator {
	idx := make(map[string]Locator, len(locators))
	for _, l := range locators {
		idx[l.Selector] = l
	}
	return idx
}
