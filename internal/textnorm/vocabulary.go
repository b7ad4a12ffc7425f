package textnorm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Term maps one spelling found in listing titles to its canonical value.
type Term struct {
	Match     string `yaml:"match"`
	Canonical string `yaml:"canonical"`
}

// Vocabulary is the ordered data the scanners run over. Order is the
// tie-break: the first term that matches a title wins, so compound names
// must precede their parts ("Space Gray" before "Gray").
type Vocabulary struct {
	Colors     []Term   `yaml:"colors"`
	Brands     []Term   `yaml:"brands"`
	Exclusions []string `yaml:"exclusions"`
}

// vocabularyFile is the on-disk shape read by LoadVocabulary.
type vocabularyFile struct {
	ReplaceDefaults bool `yaml:"replaceDefaults"`
	Vocabulary      `yaml:",inline"`
}

// LoadVocabulary reads a YAML vocabulary file. Its terms are scanned before
// the built-in ones unless the file sets replaceDefaults.
//
//	colors:
//	  - {match: "Titan Schwarz", canonical: "Black Titanium"}
//	brands:
//	  - {match: "Fairphone", canonical: "Fairphone"}
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}

	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	if f.ReplaceDefaults {
		return f.Vocabulary, nil
	}
	def := DefaultVocabulary()
	return Vocabulary{
		Colors:     append(f.Colors, def.Colors...),
		Brands:     append(f.Brands, def.Brands...),
		Exclusions: append(f.Exclusions, def.Exclusions...),
	}, nil
}

// DefaultVocabulary returns the built-in English and German term lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Colors:     colorTerms(),
		Brands:     brandTerms(),
		Exclusions: exclusionTerms(),
	}
}

func colorTerms() []Term {
	return []Term{
		// Compound names first.
		{"Space Gray", "Space Gray"},
		{"Space Grey", "Space Gray"},
		{"Spacegrau", "Space Gray"},
		{"Space Grau", "Space Gray"},
		{"Rose Gold", "Rose Gold"},
		{"Roségold", "Rose Gold"},
		{"Rosegold", "Rose Gold"},
		{"Midnight Green", "Midnight Green"},
		{"Nachtgrün", "Midnight Green"},
		{"Sierra Blue", "Sierra Blue"},
		{"Sierrablau", "Sierra Blue"},
		{"Pacific Blue", "Pacific Blue"},
		{"Pazifikblau", "Pacific Blue"},
		{"Alpine Green", "Alpine Green"},
		{"Alpingrün", "Alpine Green"},
		{"Deep Purple", "Deep Purple"},
		{"Dunkellila", "Deep Purple"},
		{"Natural Titanium", "Natural Titanium"},
		{"Titan Natur", "Natural Titanium"},
		{"Black Titanium", "Black Titanium"},
		{"Titan Schwarz", "Black Titanium"},
		{"White Titanium", "White Titanium"},
		{"Titan Weiß", "White Titanium"},
		{"Blue Titanium", "Blue Titanium"},
		{"Titan Blau", "Blue Titanium"},
		{"Phantom Black", "Phantom Black"},
		{"Mystic Bronze", "Mystic Bronze"},
		{"Graphite", "Graphite"},
		{"Graphit", "Graphite"},
		{"Midnight", "Midnight"},
		{"Mitternacht", "Midnight"},
		{"Starlight", "Starlight"},
		{"Polarstern", "Starlight"},
		// Plain colors.
		{"Black", "Black"},
		{"Schwarz", "Black"},
		{"White", "White"},
		{"Weiß", "White"},
		{"Weiss", "White"},
		{"Red", "Red"},
		{"Rot", "Red"},
		{"Blue", "Blue"},
		{"Blau", "Blue"},
		{"Green", "Green"},
		{"Grün", "Green"},
		{"Gruen", "Green"},
		{"Yellow", "Yellow"},
		{"Gelb", "Yellow"},
		{"Purple", "Purple"},
		{"Violett", "Purple"},
		{"Lila", "Purple"},
		{"Pink", "Pink"},
		{"Rosa", "Pink"},
		{"Gold", "Gold"},
		{"Silver", "Silver"},
		{"Silber", "Silver"},
		{"Gray", "Gray"},
		{"Grey", "Gray"},
		{"Grau", "Gray"},
		{"Orange", "Orange"},
		{"Bronze", "Bronze"},
		{"Titanium", "Titanium"},
		{"Titan", "Titanium"},
	}
}

func brandTerms() []Term {
	return []Term{
		{"Apple", "Apple"},
		{"iPhone", "Apple"},
		{"Samsung", "Samsung"},
		{"Galaxy", "Samsung"},
		{"Google", "Google"},
		{"Pixel", "Google"},
		{"Xiaomi", "Xiaomi"},
		{"Redmi", "Xiaomi"},
		{"Poco", "Xiaomi"},
		{"OnePlus", "OnePlus"},
		{"One Plus", "OnePlus"},
		{"Huawei", "Huawei"},
		{"Honor", "Honor"},
		{"Oppo", "Oppo"},
		{"Realme", "Realme"},
		{"Vivo", "Vivo"},
		{"Motorola", "Motorola"},
		{"Moto", "Motorola"},
		{"Nokia", "Nokia"},
		{"Sony", "Sony"},
		{"Xperia", "Sony"},
		{"Asus", "Asus"},
		{"Zenfone", "Asus"},
		{"Nothing Phone", "Nothing"},
		{"Fairphone", "Fairphone"},
	}
}

func exclusionTerms() []string {
	return []string{
		"hülle", "schutzhülle", "handyhülle", "case", "cover", "schutzfolie", "screen protector",
		"panzerglas", "displayschutz", "ersatzteil", "refurbished",
		"generalüberholt", "reconditionné",
	}
}
