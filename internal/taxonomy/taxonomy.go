package taxonomy

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/pantry-receipts/constants"
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// DefaultConfidence is assigned to service items that omit a confidence.
const DefaultConfidence = 0.5

type keywordFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

type keyword struct {
	text string
	re   *regexp.Regexp // word-bounded matcher for ASCII keywords, nil otherwise
}

type categoryKeywords struct {
	category constants.Category
	keywords []keyword
}

// Taxonomy holds the keyword dictionary in match order.
type Taxonomy struct {
	ordered []categoryKeywords
}

// RawItem is an item as reported by an external service, before validation.
type RawItem struct {
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Category   string   `json:"category,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	ExpiryDays int      `json:"expiry_days,omitempty"`
}

// Default returns the taxonomy built from the embedded dictionary.
func Default() *Taxonomy {
	t, err := Parse(defaultKeywords)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: embedded keywords: %v", err))
	}
	return t
}

// Parse builds a taxonomy from a YAML keyword dictionary.
func Parse(doc []byte) (*Taxonomy, error) {
	var f keywordFile
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	t := &Taxonomy{}
	seen := map[constants.Category]bool{}
	for _, c := range f.Categories {
		cat, ok := constants.CanonicalCategory(c.Name)
		if !ok || cat == constants.Etc {
			return nil, fmt.Errorf("unknown category %q", c.Name)
		}
		if seen[cat] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[cat] = true

		ck := categoryKeywords{category: cat}
		for _, kw := range c.Keywords {
			kw = fold(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			k := keyword{text: kw}
			if isASCII(kw) {
				k.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `(?:s|es)?\b`)
			}
			ck.keywords = append(ck.keywords, k)
		}
		t.ordered = append(t.ordered, ck)
	}
	return t, nil
}

// Match returns the first category whose dictionary hits the text.
func (t *Taxonomy) Match(text string) (constants.Category, string, bool) {
	s := fold(text)
	for _, ck := range t.ordered {
		for _, kw := range ck.keywords {
			if kw.re != nil {
				if kw.re.MatchString(s) {
					return ck.category, kw.text, true
				}
				continue
			}
			if strings.Contains(s, kw.text) {
				return ck.category, kw.text, true
			}
		}
	}
	return constants.Etc, "", false
}

// Normalize validates a service-reported item against the closed enums.
// Out-of-enum values are clamped, never rejected; only nameless items are dropped.
func (t *Taxonomy) Normalize(raw RawItem) (entity.ExtractedItem, bool) {
	name := strings.Join(strings.Fields(raw.Name), " ")
	if name == "" {
		return entity.ExtractedItem{}, false
	}

	cat, _ := constants.CanonicalCategory(raw.Category)
	unit, _ := constants.CanonicalUnit(raw.Unit)

	qty := raw.Quantity
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		qty = 1
	}

	conf := DefaultConfidence
	if raw.Confidence != nil {
		conf = ClampConfidence(*raw.Confidence)
	}

	expiry := raw.ExpiryDays
	if expiry <= 0 {
		expiry = constants.DefaultExpiryDays(cat)
	}

	return entity.ExtractedItem{
		Name:                name,
		Quantity:            qty,
		Unit:                unit,
		Category:            cat,
		Confidence:          conf,
		EstimatedExpiryDays: expiry,
	}, true
}

// NormalizeAll runs Normalize over a batch, dropping invalid entries.
func (t *Taxonomy) NormalizeAll(raw []RawItem) []entity.ExtractedItem {
	out := make([]entity.ExtractedItem, 0, len(raw))
	for _, r := range raw {
		if it, ok := t.Normalize(r); ok {
			out = append(out, it)
		}
	}
	return out
}

func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// NormalizeName is the dedup key for item names: width- and case-folded with
// all whitespace removed.
func NormalizeName(name string) string {
	s := fold(name)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func fold(s string) string {
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(width.Fold.String(s))
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
