package locator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/ppiankov/storyforge/internal/model"
)

// interactiveTags always qualify as locator candidates.
var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// interactiveRoles qualify an element regardless of its tag.
var interactiveRoles = map[string]bool{
	"button":   true,
	"textbox":  true,
	"link":     true,
	"combobox": true,
	"checkbox": true,
	"radio":    true,
	"menuitem": true,
}

// structuralTags never become locators themselves.
var structuralTags = map[string]bool{
	"html":     true,
	"head":     true,
	"body":     true,
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"title":    true,
	"noscript": true,
}

// scan parses one snapshot and returns its locator candidates in
// document order. The per-tag counters feed the nth() CSS fallback, so
// they count every element of a tag, candidate or not.
func scan(snapshot string) ([]model.Locator, error) {
	root, err := html.Parse(strings.NewReader(snapshot))
	if err != nil {
		return nil, err
	}

	var out []model.Locator
	tagCounts := make(map[string]int)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := n.Data
			idx := tagCounts[tag]
			tagCounts[tag]++

			if !structuralTags[tag] {
				attrs := attrMap(n)
				if qualifies(tag, attrs) {
					out = append(out, derive(tag, attrs, visibleText(n), idx))
				}
			}
			if tag == "script" || tag == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// qualifies reports whether an element is interactive or identifiable.
func qualifies(tag string, attrs map[string]string) bool {
	return interactiveTags[tag] ||
		interactiveRoles[attrs["role"]] ||
		attrs["data-testid"] != "" ||
		attrs["aria-label"] != "" ||
		attrs["id"] != ""
}

// derive picks the highest-priority attribute present and builds the
// locator from it. Confidence follows from the source, never set here.
func derive(tag string, attrs map[string]string, text string, tagIdx int) model.Locator {
	var selector string
	var source model.SourceAttribute

	switch {
	case attrs["data-testid"] != "":
		selector = fmt.Sprintf("page.getByTestId(%s)", jsQuote(attrs["data-testid"]))
		source = model.SourceTestID
	case attrs["aria-label"] != "":
		selector = fmt.Sprintf("page.getByLabel(%s)", jsQuote(attrs["aria-label"]))
		source = model.SourceAriaLabel
	case attrs["role"] != "":
		if text != "" {
			selector = fmt.Sprintf("page.getByRole(%s, { name: %s })", jsQuote(attrs["role"]), jsQuote(text))
		} else {
			selector = fmt.Sprintf("page.getByRole(%s)", jsQuote(attrs["role"]))
		}
		source = model.SourceRole
	case attrs["id"] != "":
		selector = fmt.Sprintf("page.locator('#%s')", attrs["id"])
		source = model.SourceID
	default:
		if class := firstClass(attrs["class"]); class != "" {
			selector = fmt.Sprintf("page.locator('%s.%s')", tag, class)
		} else {
			selector = fmt.Sprintf("page.locator('%s').nth(%d)", tag, tagIdx)
		}
		source = model.SourceCSS
	}

	return model.Locator{
		Selector:    selector,
		Source:      source,
		Confidence:  model.ConfidenceFor(source),
		Description: describe(tag, attrs, text),
	}
}

// describe builds the human-readable label the planner matches
// against: an element-kind word plus the best available text.
func describe(tag string, attrs map[string]string, text string) string {
	kind := kindWord(tag, attrs)
	label := text
	if label == "" {
		for _, k := range []string{"aria-label", "placeholder", "name", "value", "title", "alt"} {
			if v := attrs[k]; v != "" {
				label = v
				break
			}
		}
	}
	if label == "" {
		return kind
	}
	return fmt.Sprintf("%s %q", kind, clip(label, 60))
}

// kindWord normalizes an element to the vocabulary stories use. An
// explicit role wins over the tag.
func kindWord(tag string, attrs map[string]string) string {
	if r := attrs["role"]; r != "" {
		return r
	}
	switch tag {
	case "a":
		return "link"
	case "button":
		return "button"
	case "input":
		switch attrs["type"] {
		case "submit", "button":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		default:
			return "input"
		}
	case "textarea":
		return "input"
	case "select":
		return "combobox"
	default:
		return tag
	}
}

func attrMap(n *html.Node) map[string]string {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

// visibleText collects and collapses the element's text content.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
			return
		}
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return clip(strings.Join(strings.Fields(b.String()), " "), 80)
}

func firstClass(class string) string {
	fields := strings.Fields(class)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// jsQuote renders s as a single-quoted JavaScript string literal.
func jsQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
