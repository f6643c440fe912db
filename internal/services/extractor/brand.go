// Package extractor derives brand and size from free-text product names.
// Every function is pure and safe for concurrent use.
package extractor

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// brandCandidate pairs a canonical brand with its lower-cased match form.
type brandCandidate struct {
	brand string
	lower string
}

// sortedBrands holds known brands, longest first, so "John West" is tried
// before "John". Spellings differing only in case keep the first listed form.
var sortedBrands = buildCandidates(knownBrands)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "new": {}, "fresh": {}, "organic": {}, "free": {}, "range": {},
}

var commonNouns = map[string]struct{}{
	"sauce": {}, "milk": {}, "bread": {}, "cheese": {}, "juice": {}, "water": {},
}

const (
	minBrandLength  = 2
	maxTwoWordBrand = 20
)

func buildCandidates(brands []string) []brandCandidate {
	seen := make(map[string]struct{}, len(brands))
	out := make([]brandCandidate, 0, len(brands))
	for _, b := range brands {
		lower := strings.ToLower(b)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, brandCandidate{brand: b, lower: lower})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i].brand) > utf8.RuneCountInString(out[j].brand)
	})
	return out
}

// KnownBrands returns a copy of the brand list in match order.
func KnownBrands() []string {
	out := make([]string, len(sortedBrands))
	for i, c := range sortedBrands {
		out[i] = c.brand
	}
	return out
}

// ExtractBrand returns the best-effort brand of a product name, or "" when
// neither the known-brand list nor the capitalised-word heuristic applies.
func ExtractBrand(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if b := matchKnownBrand(name); b != "" {
		return b
	}
	return guessBrand(name)
}

func matchKnownBrand(name string) string {
	lower := strings.ToLower(name)
	for _, c := range sortedBrands {
		if strings.HasPrefix(lower, c.lower+" ") {
			return c.brand
		}
		if !strings.HasPrefix(lower, c.lower) {
			continue
		}
		// "Heinz500ml": the brand may be glued to a non-letter.
		rest := lower[len(c.lower):]
		if rest == "" {
			return c.brand
		}
		if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsLetter(r) {
			return c.brand
		}
	}
	return ""
}

func guessBrand(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}

	idx := 0
	if rejectedLeadWord(words[0]) {
		if len(words) < 2 {
			return ""
		}
		idx = 1
		if hasDigit(words[idx]) {
			return ""
		}
	}

	candidate := words[idx]
	if !startsUpper(candidate) || utf8.RuneCountInString(candidate) < minBrandLength {
		return ""
	}

	if idx+1 < len(words) {
		next := words[idx+1]
		_, noun := commonNouns[strings.ToLower(next)]
		if startsUpper(next) && utf8.RuneCountInString(next) >= minBrandLength && !noun {
			two := candidate + " " + next
			if utf8.RuneCountInString(two) <= maxTwoWordBrand {
				return two
			}
		}
	}
	return candidate
}

func rejectedLeadWord(w string) bool {
	if hasDigit(w) {
		return true
	}
	_, stop := stopWords[strings.ToLower(w)]
	return stop
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
