package constants

import "strings"

type Unit string

const (
	Gram       Unit = "g"
	Kilogram   Unit = "kg"
	Milliliter Unit = "ml"
	Liter      Unit = "L"
	Each       Unit = "ea"
	Pack       Unit = "pack"
	Bottle     Unit = "bottle"
	Box        Unit = "box"
	Bunch      Unit = "bunch"
)

var allUnits = []Unit{Gram, Kilogram, Milliliter, Liter, Each, Pack, Bottle, Box, Bunch}

var unitSynonyms = map[string]Unit{
	"gram":        Gram,
	"grams":       Gram,
	"그램":          Gram,
	"kilogram":    Kilogram,
	"kilograms":   Kilogram,
	"킬로":          Kilogram,
	"킬로그램":        Kilogram,
	"milliliter":  Milliliter,
	"milliliters": Milliliter,
	"밀리리터":        Milliliter,
	"l":           Liter,
	"liter":       Liter,
	"liters":      Liter,
	"litre":       Liter,
	"리터":          Liter,
	"each":        Each,
	"pc":          Each,
	"pcs":         Each,
	"piece":       Each,
	"count":       Each,
	"개":           Each,
	"입":           Each,
	"packs":       Pack,
	"pk":          Pack,
	"package":     Pack,
	"팩":           Pack,
	"봉":           Pack,
	"봉지":          Pack,
	"bottles":     Bottle,
	"btl":         Bottle,
	"병":           Bottle,
	"boxes":       Box,
	"박스":          Box,
	"상자":          Box,
	"bunches":     Bunch,
	"단":           Bunch,
	"묶음":          Bunch,
	"송이":          Bunch,
}

func UnitsAsStrings() []string {
	out := make([]string, len(allUnits))
	for i, u := range allUnits {
		out[i] = string(u)
	}
	return out
}

func (u Unit) Valid() bool {
	for _, x := range allUnits {
		if u == x {
			return true
		}
	}
	return false
}

// CanonicalUnit maps a free-form unit onto the closed set.
// Unknown units resolve to Each with ok=false.
func CanonicalUnit(input string) (Unit, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Each, false
	}
	// "L" is the only mixed-case member, so compare case-insensitively.
	for _, u := range allUnits {
		if strings.EqualFold(s, string(u)) {
			return u, true
		}
	}
	if u, ok := unitSynonyms[strings.ToLower(s)]; ok {
		return u, true
	}
	return Each, false
}
