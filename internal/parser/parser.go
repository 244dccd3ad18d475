package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/pantry-receipts/constants"
	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
	"github.com/joseph-ayodele/pantry-receipts/internal/taxonomy"
)

const (
	baseConfidence    = 0.5
	keywordConfidence = 0.3
	unitConfidence    = 0.2
)

var excludePatterns = []*regexp.Regexp{
	// totals, tax and payment
	regexp.MustCompile(`합\s*계|총\s*액|총\s*금액|소\s*계|부가세|부가가치세|(?:과세|면세)\s*(?:물품|금액|합계|품목|가액|매출)|세액|받을\s*금액|받은\s*금액|거스름|할인\s*금액|결제|승인|카드|현금|포인트|적립`),
	regexp.MustCompile(`(?i)\b(total|subtotal|sub-total|tax|vat|cash|card|visa|master|change|payment|approval|balance|discount)\b`),
	// store metadata
	regexp.MustCompile(`영수증|사업자|대표자?|매장|점포|가맹점|주소|전화|고객센터|교환|환불|감사합니다|계산원`),
	regexp.MustCompile(`(?i)\b(tel|phone|store|receipt|cashier|thank|pos)\b`),
	// dates, times, phone numbers
	regexp.MustCompile(`\d{2,4}[-./년]\s?\d{1,2}[-./월]\s?\d{1,2}`),
	regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`),
	regexp.MustCompile(`\b0\d{1,2}-\d{3,4}-\d{4}\b`),
	// separators
	regexp.MustCompile(`^[\s\-=*_~.#]+$`),
}

// "<text> <digits-with-commas>원?" at end of line
var rePriceSuffix = regexp.MustCompile(`^(.*?)\s+[\d,]+\s*원?\s*$`)

var (
	rePriceRemnant = regexp.MustCompile(`[\d,]+\s*원`)
	reBracketLead  = regexp.MustCompile(`^\s*[\[(（【<][^\])）】>]*[\])）】>]\s*`)
	reTaxMarker    = regexp.MustCompile(`^\s*(?:면세|과세)\s+`)
	reStrayPunct   = regexp.MustCompile(`[*#@!~^&_+=|\\/:;"'<>?.,\-\[\]()（）【】]`)
	reTrailingNum  = regexp.MustCompile(`\s+\d+\s*$`)
	reNumericOnly  = regexp.MustCompile(`^[\d,.\s]+$`)
)

type unitPattern struct {
	unit constants.Unit
	re   *regexp.Regexp
}

// unitRe matches "<number><suffix>" followed by a non-letter or end of text.
// RE2's \b only understands ASCII word characters, so Hangul suffixes need
// the explicit trailing class.
func unitRe(number, suffixes string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(` + number + `)\s*(?:` + suffixes + `)(?:$|[^\p{L}\p{N}])`)
}

// Grouped thousands ("1,000ml") are tried before plain digits.
const (
	decimal = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`
	integer = `\d{1,3}(?:,\d{3})+|\d+`
)

// order matters: kg before g, ml before L.
var unitPatterns = []unitPattern{
	{constants.Kilogram, unitRe(decimal, `kg|킬로그램|킬로`)},
	{constants.Gram, unitRe(decimal, `g|그램`)},
	{constants.Milliliter, unitRe(decimal, `ml|밀리리터`)},
	{constants.Liter, unitRe(decimal, `l|리터`)},
	{constants.Each, unitRe(integer, `개입|개|입|구|ea|pcs`)},
	{constants.Pack, unitRe(integer, `팩|봉지|봉|pack|pk`)},
	{constants.Bottle, unitRe(integer, `병|btl|bottle`)},
	{constants.Box, unitRe(integer, `박스|상자|box`)},
	{constants.Bunch, unitRe(integer, `단|묶음|송이|bunch`)},
}

// Parser is the rule-based, offline last resort of the extraction chain.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	tax *taxonomy.Taxonomy
}

func New(tax *taxonomy.Taxonomy) *Parser {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Parser{tax: tax}
}

// Parse extracts food items from recognized receipt text. Identical input
// always yields identical output.
func (p *Parser) Parse(rawText string) []entity.ExtractedItem {
	items := make([]entity.ExtractedItem, 0)
	seen := map[string]struct{}{}

	for _, line := range strings.Split(strings.ReplaceAll(rawText, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || excluded(line) {
			continue
		}

		candidate := stripPrice(line)
		if utf8.RuneCountInString(candidate) < 2 || reNumericOnly.MatchString(candidate) {
			continue
		}

		cat, _, ok := p.tax.Match(candidate)
		if !ok {
			continue
		}

		qty, unit, unitMatched, matchedText := extractQuantity(candidate)
		name := cleanName(candidate, matchedText)
		if utf8.RuneCountInString(name) < 2 {
			continue
		}

		key := taxonomy.NormalizeName(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		conf := baseConfidence + keywordConfidence
		if unitMatched {
			conf += unitConfidence
		}

		items = append(items, entity.ExtractedItem{
			Name:                name,
			Quantity:            qty,
			Unit:                unit,
			Category:            cat,
			Confidence:          math.Min(conf, 1.0),
			EstimatedExpiryDays: constants.DefaultExpiryDays(cat),
		})
	}
	return items
}

func excluded(line string) bool {
	for _, re := range excludePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func stripPrice(line string) string {
	if m := rePriceSuffix.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return line
}

// extractQuantity returns quantity, unit, whether a pattern matched and the
// matched substring (so it can be removed from the name).
func extractQuantity(candidate string) (float64, constants.Unit, bool, string) {
	for _, up := range unitPatterns {
		m := up.re.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		q, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || q <= 0 {
			q = 1
		}
		return q, up.unit, true, m[0]
	}
	return 1, constants.Each, false, ""
}

func cleanName(candidate, unitText string) string {
	s := candidate
	if unitText != "" {
		s = strings.Replace(s, unitText, " ", 1)
	}
	s = rePriceRemnant.ReplaceAllString(s, " ")
	for reBracketLead.MatchString(s) {
		s = reBracketLead.ReplaceAllString(s, "")
	}
	s = reTaxMarker.ReplaceAllString(s, "")
	s = reStrayPunct.ReplaceAllString(s, " ")
	s = reTrailingNum.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
