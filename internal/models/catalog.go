package models

import "strings"

// Default categories seeded into an empty local catalog.
const (
	CategoryNormal   = "normal"
	CategoryPinchos  = "pinchos"
	CategoryFiestas  = "fiestas"
	TypeAll          = "all"
	defaultTypeLabel = "cervezas"
)

var DefaultCategories = []string{CategoryNormal, CategoryPinchos, CategoryFiestas}

// ProductTypes lists the type tags the bar uses to group its menu.
var ProductTypes = []string{
	"cervezas", "vinos", "cubatas", "copas", "refrescos", "litros", "chuches", "pinchos", "cafes",
}

// Category is a price list. Its name doubles as the category key.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PricedProduct is a product with its unit price in one category.
type PricedProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	CategoryKey string `json:"categoryKey"`
	UnitPrice   Money  `json:"unitPrice"`
}

// ProductFilter narrows a product listing. An empty CategoryKey matches every
// category; an empty or "all" TypeTag matches every type; TextQuery is a
// case-insensitive substring match on the product name.
type ProductFilter struct {
	CategoryKey string `json:"categoryKey"`
	TypeTag     string `json:"typeTag"`
	TextQuery   string `json:"textQuery"`
}

// AllTypes reports whether the filter ignores the product type.
func (f ProductFilter) AllTypes() bool {
	return f.TypeTag == "" || f.TypeTag == TypeAll
}

func (f ProductFilter) Match(p PricedProduct) bool {
	if f.CategoryKey != "" && p.CategoryKey != f.CategoryKey {
		return false
	}
	if !f.AllTypes() && p.Type != f.TypeTag {
		return false
	}
	q := strings.TrimSpace(f.TextQuery)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), strings.ToLower(q))
}

// FilterProducts returns the products matching f, preserving order.
func FilterProducts(products []PricedProduct, f ProductFilter) []PricedProduct {
	out := make([]PricedProduct, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// DefaultProductType is the type preselected when a product has none.
func DefaultProductType() string { return defaultTypeLabel }
