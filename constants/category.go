package constants

import (
	"strings"
)

type Category string

const (
	Vegetables Category = "vegetables"
	Fruits     Category = "fruits"
	Meat       Category = "meat"
	Seafood    Category = "seafood"
	Dairy      Category = "dairy"
	Condiments Category = "condiments"
	Grains     Category = "grains"
	Beverages  Category = "beverages"
	Snacks     Category = "snacks"
	Etc        Category = "etc"
)

var allCategories = []Category{
	Vegetables,
	Fruits,
	Meat,
	Seafood,
	Dairy,
	Condiments,
	Grains,
	Beverages,
	Snacks,
	Etc,
}

// default shelf life in days, used when a service does not supply its own estimate
var defaultExpiryDays = map[Category]int{
	Vegetables: 7,
	Fruits:     7,
	Meat:       3,
	Seafood:    2,
	Dairy:      10,
	Condiments: 180,
	Grains:     180,
	Beverages:  30,
	Snacks:     60,
	Etc:        14,
}

var categorySynonyms = map[string]Category{
	"vegetable":  Vegetables,
	"veggies":    Vegetables,
	"produce":    Vegetables,
	"채소":         Vegetables,
	"야채":         Vegetables,
	"fruit":      Fruits,
	"과일":         Fruits,
	"고기":         Meat,
	"육류":         Meat,
	"poultry":    Meat,
	"fish":       Seafood,
	"수산":         Seafood,
	"해산물":        Seafood,
	"유제품":        Dairy,
	"eggs":       Dairy,
	"condiment":  Condiments,
	"sauce":      Condiments,
	"sauces":     Condiments,
	"seasoning":  Condiments,
	"양념":         Condiments,
	"조미료":        Condiments,
	"grain":      Grains,
	"곡물":         Grains,
	"bakery":     Grains,
	"beverage":   Beverages,
	"drink":      Beverages,
	"drinks":     Beverages,
	"음료":         Beverages,
	"snack":      Snacks,
	"과자":         Snacks,
	"간식":         Snacks,
	"other":      Etc,
	"others":     Etc,
	"기타":         Etc,
	"misc":       Etc,
	"unknown":    Etc,
	"uncategory": Etc,
}

// Categories returns the closed category set in canonical order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func CategoriesAsStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func (c Category) Valid() bool {
	_, ok := defaultExpiryDays[c]
	return ok
}

// DefaultExpiryDays is the static per-category expiry window.
func DefaultExpiryDays(c Category) int {
	if d, ok := defaultExpiryDays[c]; ok {
		return d
	}
	return defaultExpiryDays[Etc]
}

// CanonicalCategory maps a free-form label onto the closed set.
// Unknown labels resolve to Etc with ok=false.
func CanonicalCategory(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Etc, false
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}
	if cat, ok := categorySynonyms[normalized]; ok {
		return cat, true
	}
	return Etc, false
}
