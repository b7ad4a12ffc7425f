package textnorm

import (
	"regexp"
	"strconv"
	"strings"
)

// CapacityUnknown is returned by ExtractRAM and ExtractStorage when the title
// holds no usable figure.
const CapacityUnknown = -1

// The RAM-vs-storage split is heuristic. Everything that decides which
// figure is which lives in this file so the rules can change without touching
// callers.
var (
	// "8GB RAM", "8 Go de RAM", "8GB Arbeitsspeicher"
	ramSuffixRe = regexp.MustCompile(`\b(\d{1,2})\s*(?:gb|go)\s*(?:de\s+)?(?:ram|arbeitsspeicher|memory)\b`)
	// "RAM 8GB", "RAM: 8 GB"
	ramPrefixRe = regexp.MustCompile(`\b(?:ram|arbeitsspeicher)\s*:?\s*(\d{1,2})\s*(?:gb|go)\b`)
	// "8GB+256GB", "8/256GB", "8 GB / 256 GB"
	comboRe = regexp.MustCompile(`\b(\d{1,2})\s*(?:gb|go)?\s*[+/]\s*(\d{1,4})\s*(gb|go|tb|to)\b`)
	// "256GB Speicher", "Storage: 256 GB"
	storageSuffixRe = regexp.MustCompile(`\b(\d{1,4})\s*(gb|go|tb|to)\s*(?:interner\s+)?(?:speicher|storage|rom)\b`)
	storagePrefixRe = regexp.MustCompile(`\b(?:speicher|storage|rom)\s*:?\s*(\d{1,4})\s*(gb|go|tb|to)\b`)
	capacityRe      = regexp.MustCompile(`\b(\d{1,4})\s*(gb|go|tb|to)\b`)
)

// ExtractRAM returns the RAM size in GB mentioned in title, or
// (CapacityUnknown, false).
func ExtractRAM(title string) (int, bool) {
	s := fold(title)
	for _, re := range []*regexp.Regexp{ramSuffixRe, ramPrefixRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				return v, true
			}
		}
	}
	if ram, storage, ok := combo(s); ok && ram < storage {
		return ram, true
	}
	return CapacityUnknown, false
}

// ExtractStorage returns the storage size in GB mentioned in title, or
// (CapacityUnknown, false). Without an explicit label it takes the largest
// figure that is not the RAM figure; 1 TB counts as 1024 GB.
func ExtractStorage(title string) (int, bool) {
	s := fold(title)
	for _, re := range []*regexp.Regexp{storageSuffixRe, storagePrefixRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			if v, ok := toGB(m[1], m[2]); ok {
				return v, true
			}
		}
	}
	if ram, storage, ok := combo(s); ok && ram < storage {
		return storage, true
	}

	ram, hasRAM := ExtractRAM(title)
	best := CapacityUnknown
	ramSkipped := false
	for _, m := range capacityRe.FindAllStringSubmatch(s, -1) {
		v, ok := toGB(m[1], m[2])
		if !ok {
			continue
		}
		if hasRAM && !ramSkipped && v == ram {
			ramSkipped = true
			continue
		}
		if v > best {
			best = v
		}
	}
	if best == CapacityUnknown {
		return CapacityUnknown, false
	}
	return best, true
}

func combo(s string) (ram, storage int, ok bool) {
	m := comboRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	ram, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	storage, ok = toGB(m[2], m[3])
	return ram, storage, ok
}

// ParseCapacity reads a structured capacity value such as "8 GB" or "1TB".
// A bare number is taken as GB.
func ParseCapacity(text string) (int, bool) {
	s := strings.TrimSpace(fold(text))
	if m := capacityRe.FindStringSubmatch(s); m != nil {
		return toGB(m[1], m[2])
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v, true
	}
	return CapacityUnknown, false
}

func toGB(digits, unit string) (int, bool) {
	v, err := strconv.Atoi(digits)
	if err != nil || v <= 0 {
		return CapacityUnknown, false
	}
	if unit == "tb" || unit == "to" {
		v *= 1024
	}
	return v, true
}
