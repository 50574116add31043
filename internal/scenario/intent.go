package scenario

import (
	"regexp"
	"strings"
)

// intentKind is the BDD role a clause plays before binding.
type intentKind int

const (
	intentGiven intentKind = iota
	intentWhen
	intentThen
)

// intent is one story clause: its role, original text, the quoted
// input value if the clause carries one, and the match tokens.
type intent struct {
	kind   intentKind
	text   string
	value  string
	tokens []string
}

var quotedLiteral = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)

// assertionLeads open clauses that state expected outcomes.
var assertionLeads = map[string]bool{
	"see":     true,
	"should":  true,
	"verify":  true,
	"expect":  true,
	"check":   true,
	"confirm": true,
	"ensure":  true,
}

// outcomeWords mark a clause as an assertion wherever they appear.
var outcomeWords = []string{"displayed", "shown", "visible", "appears", "contains"}

// stopwords are dropped before matching. Generic action verbs are
// included: "click the search button" must match on search/button, and
// "select first product" must not hit <select> elements.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "for": true,
	"of": true, "in": true, "on": true, "at": true, "with": true,
	"and": true, "then": true, "into": true, "from": true, "it": true,
	"this": true, "that": true, "i": true, "we": true, "my": true,
	"is": true, "are": true, "be": true, "was": true, "been": true,
	"user": true, "want": true, "wants": true, "like": true,
	"click": true, "press": true, "tap": true, "choose": true,
	"select": true, "open": true, "go": true,
}

var ordinals = map[string]int{
	"first":  0,
	"second": 1,
	"third":  2,
	"fourth": 3,
	"fifth":  4,
}

// decompose splits the user story into sentences (one scenario each)
// and each sentence into classified intents, preserving story order.
func decompose(useCase string) [][]intent {
	var sentences [][]intent
	for _, sentence := range splitAny(useCase, ".;\n") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		var intents []intent
		for _, clause := range clauses(sentence) {
			intents = append(intents, classify(clause))
		}
		if len(intents) > 0 {
			sentences = append(sentences, intents)
		}
	}
	return sentences
}

// clauses splits a sentence on commas and the connectives "and"/"then".
func clauses(sentence string) []string {
	parts := strings.Split(sentence, ",")
	var out []string
	for _, p := range parts {
		for _, q := range strings.Split(p, " and ") {
			for _, r := range strings.Split(q, " then ") {
				r = strings.TrimSpace(r)
				if r != "" {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

// classify assigns a clause its BDD role and extracts tokens/value.
func classify(clause string) intent {
	lower := strings.ToLower(clause)

	in := intent{kind: intentWhen, text: clause}
	if m := quotedLiteral.FindStringSubmatch(clause); m != nil {
		if m[1] != "" {
			in.value = m[1]
		} else {
			in.value = m[2]
		}
	}
	in.tokens = tokenize(lower)

	switch {
	case isAssertion(lower):
		in.kind = intentThen
	case isPrecondition(lower):
		in.kind = intentGiven
	}
	return in
}

func isAssertion(lower string) bool {
	fields := strings.Fields(lower)
	if len(fields) > 0 && assertionLeads[fields[0]] {
		return true
	}
	for _, w := range outcomeWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isPrecondition(lower string) bool {
	return strings.HasPrefix(lower, "on ") ||
		strings.HasPrefix(lower, "at ") ||
		strings.HasPrefix(lower, "given ") ||
		strings.Contains(lower, "logged in")
}

// tokenize lowercases, strips quoted literals, and drops stopwords.
func tokenize(lower string) []string {
	lower = quotedLiteral.ReplaceAllString(lower, " ")

	var tokens []string
	for _, f := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if !stopwords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ordinalOf returns the index named by an ordinal token, if any.
func ordinalOf(tokens []string) (int, bool) {
	for _, t := range tokens {
		if n, ok := ordinals[t]; ok {
			return n, true
		}
	}
	return 0, false
}

func splitAny(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}
