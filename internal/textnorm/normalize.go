package textnorm

import (
	"strings"

	"smartshop/price-service/internal/model"
)

// Normalizer runs the attribute scanners over a compiled Vocabulary.
// It is immutable after New and safe for concurrent use.
type Normalizer struct {
	colors     []termMatcher
	brands     []termMatcher
	exclusions []termMatcher
}

// New compiles v.
func New(v Vocabulary) (*Normalizer, error) {
	colors, err := compileTerms(v.Colors)
	if err != nil {
		return nil, err
	}
	brands, err := compileTerms(v.Brands)
	if err != nil {
		return nil, err
	}
	terms := make([]Term, 0, len(v.Exclusions))
	for _, e := range v.Exclusions {
		if e = strings.TrimSpace(e); e != "" {
			terms = append(terms, Term{Match: e, Canonical: fold(e)})
		}
	}
	exclusions, err := compileTerms(terms)
	if err != nil {
		return nil, err
	}
	return &Normalizer{colors: colors, brands: brands, exclusions: exclusions}, nil
}

var defaultNormalizer = mustNew(DefaultVocabulary())

func mustNew(v Vocabulary) *Normalizer {
	n, err := New(v)
	if err != nil {
		panic(err)
	}
	return n
}

// Default returns the Normalizer built from DefaultVocabulary.
func Default() *Normalizer { return defaultNormalizer }

// ExtractColor runs the default color scanner.
func ExtractColor(title string) (string, bool) { return defaultNormalizer.ExtractColor(title) }

// ExtractBrand runs the default brand scanner.
func ExtractBrand(title string) (string, bool) { return defaultNormalizer.ExtractBrand(title) }

// Normalized is a listing after every normalization step. Each value comes
// with its own ok flag; failed values hold their package sentinel.
type Normalized struct {
	Price     float64
	PriceOK   bool
	PriceErr  error
	Currency  string
	Available bool

	Color     string
	ColorOK   bool
	Brand     string
	BrandOK   bool
	RAMGB     int
	RAMOK     bool
	StorageGB int
	StorageOK bool

	ShippingCost *float64
	Discount     *float64

	ExcludedBy string
}

// Excluded reports whether the title matched an exclusion term.
func (n Normalized) Excluded() bool { return n.ExcludedBy != "" }

// Normalize runs every step over l. Structured adapter attributes take
// precedence over values scanned from the title.
func (n *Normalizer) Normalize(l model.ScrapedListing) Normalized {
	var out Normalized

	out.Price, out.PriceErr = ParsePrice(l.Price)
	out.PriceOK = out.PriceErr == nil
	out.Currency = ParseCurrency(l.Currency)
	out.Available = availability(l)

	out.Color, out.ColorOK = n.ExtractColor(l.Title)
	if raw := strings.TrimSpace(l.Attributes["color"]); raw != "" {
		if c, ok := n.ExtractColor(raw); ok {
			out.Color, out.ColorOK = c, true
		} else {
			out.Color, out.ColorOK = raw, true
		}
	}

	out.Brand, out.BrandOK = n.ExtractBrand(l.Title)

	out.RAMGB, out.RAMOK = ExtractRAM(l.Title)
	if raw := l.Attributes["ram"]; raw != "" {
		if v, ok := ParseCapacity(raw); ok {
			out.RAMGB, out.RAMOK = v, true
		}
	}

	out.StorageGB, out.StorageOK = ExtractStorage(l.Title)
	if raw := l.Attributes["storage"]; raw != "" {
		if v, ok := ParseCapacity(raw); ok {
			out.StorageGB, out.StorageOK = v, true
		}
	}

	out.ShippingCost = parseShipping(l.ShippingText)
	out.Discount = parseDiscount(l.DiscountText)
	out.ExcludedBy, _ = n.ContainsExclusion(l.Title)

	return out
}

// availability prefers the adapter's flag, then the text. A listing that
// carries a price but no availability signal is taken as available.
func availability(l model.ScrapedListing) bool {
	if l.Available != nil {
		return *l.Available
	}
	if v, ok := ParseAvailability(l.AvailabilityText); ok {
		return v
	}
	return true
}

var freeShippingPhrases = []string{"free shipping", "free delivery", "kostenlos", "gratis", "versandkostenfrei"}

func parseShipping(text string) *float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s := fold(text)
	for _, p := range freeShippingPhrases {
		if strings.Contains(s, p) {
			zero := 0.0
			return &zero
		}
	}
	v, err := ParsePrice(text)
	if err != nil {
		return nil
	}
	return &v
}

func parseDiscount(text string) *float64 {
	s := strings.Trim(strings.TrimSpace(text), "-−% ")
	if s == "" {
		return nil
	}
	v, err := ParsePrice(s)
	if err != nil {
		return nil
	}
	return &v
}
