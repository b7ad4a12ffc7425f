// Package textnorm turns noisy storefront text into typed values: prices in
// either European or US/UK notation, currencies, availability, and product
// attributes (color, brand, RAM, storage) embedded in free-text titles.
//
// Every extractor reports whether it succeeded. On failure it also returns a
// sentinel (PriceUnparsed, ColorUnknown, BrandUnknown, CapacityUnknown) so
// callers that persist values never confuse a failure with a real reading.
package textnorm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// PriceUnparsed is the single failure value of ParsePrice. No valid price is
// negative, so it can never collide with a real reading.
const PriceUnparsed = -1.0

// ErrUnparseablePrice is wrapped by every ParsePrice failure.
var ErrUnparseablePrice = errors.New("unparseable price")

// ParsePrice converts a storefront price string to a number.
//
// When both ',' and '.' appear, the rightmost one is the decimal point and the
// other is a thousands separator ("1.234,56" and "1,234.56" are both 1234.56).
// A single ',' or '.' is the decimal point ("569,00" and "569.00" are 569).
// A separator repeated with no other kind present groups thousands
// ("1.234.567" is 1234567). Currency symbols, codes and spaces are ignored, as
// is a trailing ",-" ("699,-").
func ParsePrice(text string) (float64, error) {
	cleaned, wholeUnits, err := stripPriceNoise(text)
	if err != nil {
		return PriceUnparsed, fmt.Errorf("%w %q: %v", ErrUnparseablePrice, text, err)
	}

	canonical := strings.NewReplacer(",", "", ".", "").Replace(cleaned)
	if !wholeUnits {
		canonical, err = canonicalDecimal(cleaned)
		if err != nil {
			return PriceUnparsed, fmt.Errorf("%w %q: %v", ErrUnparseablePrice, text, err)
		}
	}

	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return PriceUnparsed, fmt.Errorf("%w %q: %v", ErrUnparseablePrice, text, err)
	}

	f, _ := d.Round(2).Float64()
	return f, nil
}

// noCentsSuffix matches the "699,-" notation for whole amounts.
var noCentsSuffix = regexp.MustCompile(`[,.]\s*[-–—]+\s*$`)

// stripPriceNoise keeps digits and separators. wholeUnits reports that the
// amount was written with a "no cents" dash, in which case every remaining
// separator groups thousands.
func stripPriceNoise(text string) (cleaned string, wholeUnits bool, err error) {
	s := strings.TrimSpace(text)
	if noCentsSuffix.MatchString(s) {
		s = noCentsSuffix.ReplaceAllString(s, "")
		wholeUnits = true
	}

	var b strings.Builder
	seenDigit := false
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsDigit(r):
			seenDigit = true
			b.WriteRune(r)
		case r == ',' || r == '.':
			if seenDigit {
				b.WriteRune(r)
				continue
			}
			// ".99" and "€,99" carry cents only; "Fr. 649" is an abbreviation.
			nextDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])
			afterLetter := i > 0 && unicode.IsLetter(runes[i-1])
			if nextDigit && !afterLetter {
				b.WriteRune('0')
				b.WriteRune(r)
			}
		case r == '-' || r == '−':
			if !seenDigit {
				return "", false, errors.New("negative amount")
			}
			return "", false, errors.New("price range")
		}
	}

	out := strings.TrimRight(b.String(), ",.")
	if !seenDigit || out == "" {
		return "", false, errors.New("no digits")
	}
	return out, wholeUnits, nil
}

func canonicalDecimal(s string) (string, error) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	var decimalSep, thousandsSep string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			decimalSep, thousandsSep = ",", "."
		} else {
			decimalSep, thousandsSep = ".", ","
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", ""), nil
		}
		decimalSep = ","
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", ""), nil
		}
		decimalSep = "."
	default:
		return s, nil
	}

	if thousandsSep != "" {
		s = strings.ReplaceAll(s, thousandsSep, "")
	}
	if strings.Count(s, decimalSep) > 1 {
		return "", errors.New("ambiguous separators")
	}
	return strings.Replace(s, decimalSep, ".", 1), nil
}

var currencySymbols = map[string]string{
	"€":   "EUR",
	"eur": "EUR",
	"$":   "USD",
	"us$": "USD",
	"usd": "USD",
	"£":   "GBP",
	"gbp": "GBP",
	"chf": "CHF",
	"fr.": "CHF",
}

// DefaultCurrency is assumed when a listing carries no currency marker.
const DefaultCurrency = "EUR"

// ParseCurrency maps a currency symbol or code to its ISO 4217 code.
// Unknown three-letter codes pass through upper-cased.
func ParseCurrency(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		return DefaultCurrency
	}
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	for sym, code := range currencySymbols {
		if len([]rune(sym)) == 1 && strings.Contains(s, sym) {
			return code
		}
	}
	if len(s) == 3 && isLetters(s) {
		return strings.ToUpper(s)
	}
	return DefaultCurrency
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var (
	unavailablePhrases = []string{
		"out of stock", "currently unavailable", "unavailable", "sold out",
		"nicht verfügbar", "nicht lieferbar", "ausverkauft", "derzeit nicht",
	}
	availablePhrases = []string{
		"in stock", "available", "auf lager", "verfügbar", "lieferbar",
		"sofort", "add to cart", "in den einkaufswagen",
	}
)

// ParseAvailability reads a storefront availability blurb. ok is false when
// the text matches no known phrase. Negative phrases are checked first since
// "nicht verfügbar" contains "verfügbar".
func ParseAvailability(text string) (available, ok bool) {
	s := fold(text)
	if strings.TrimSpace(s) == "" {
		return false, false
	}
	for _, p := range unavailablePhrases {
		if strings.Contains(s, fold(p)) {
			return false, true
		}
	}
	for _, p := range availablePhrases {
		if strings.Contains(s, fold(p)) {
			return true, true
		}
	}
	return false, false
}
