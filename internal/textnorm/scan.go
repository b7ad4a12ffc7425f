package textnorm

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Sentinels returned when a title yields no attribute.
const (
	ColorUnknown = "not available"
	BrandUnknown = "unknown"
)

// fold lower-cases s with full Unicode case folding ("Weiß" -> "weiss") after
// composing it, so decomposed umlauts compare equal to precomposed ones.
// cases.Caser is stateful, hence one per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

type termMatcher struct {
	re        *regexp.Regexp
	canonical string
}

// compileTerms builds word-bounded, case-folded patterns. Letters or digits
// on either side break a match, so "Red" never matches inside "Redmi" and
// "Rot" never matches inside "Rotation". Spaces in a term also match hyphens.
func compileTerms(terms []Term) ([]termMatcher, error) {
	out := make([]termMatcher, 0, len(terms))
	for _, t := range terms {
		words := strings.Fields(fold(t.Match))
		if len(words) == 0 || t.Canonical == "" {
			return nil, fmt.Errorf("vocabulary term %q -> %q is incomplete", t.Match, t.Canonical)
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		pattern := `(?:^|[^\p{L}\p{N}])` + strings.Join(words, `[\s\-]+`) + `(?:$|[^\p{L}\p{N}])`
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile term %q: %w", t.Match, err)
		}
		out = append(out, termMatcher{re: re, canonical: t.Canonical})
	}
	return out, nil
}

// scan returns the canonical value of the first matcher that hits.
func scan(matchers []termMatcher, text string) (string, bool) {
	folded := fold(text)
	for _, m := range matchers {
		if m.re.MatchString(folded) {
			return m.canonical, true
		}
	}
	return "", false
}

// ExtractColor returns the canonical English color named in title, or
// (ColorUnknown, false).
func (n *Normalizer) ExtractColor(title string) (string, bool) {
	if c, ok := scan(n.colors, title); ok {
		return c, true
	}
	return ColorUnknown, false
}

// ExtractBrand returns the canonical brand named in title, or
// (BrandUnknown, false). Vocabulary order breaks ties.
func (n *Normalizer) ExtractBrand(title string) (string, bool) {
	if b, ok := scan(n.brands, title); ok {
		return b, true
	}
	return BrandUnknown, false
}

// ContainsExclusion reports the first exclusion term found in title as a
// whole word. Accessories and refurbished offers share titles with the phone
// they fit and must not become variants.
func (n *Normalizer) ContainsExclusion(title string) (string, bool) {
	return scan(n.exclusions, title)
}
