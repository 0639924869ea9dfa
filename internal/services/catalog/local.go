package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"bar-pos/internal/localstore"
	"bar-pos/internal/models"
)

// PricesKey is the store key holding every category's price list.
const PricesKey = "prices"

// LocalPrice is one entry of a category's price list in the local store.
type LocalPrice struct {
	Type  string       `json:"type"`
	Price models.Money `json:"price"`
}

// LocalPriceLists maps category name to product name to price.
type LocalPriceLists map[string]map[string]LocalPrice

// LocalProvider serves the catalog from the till's own storage. Product ids
// are product names.
type LocalProvider struct {
	store *localstore.Store
}

// NewLocalProvider opens the catalog in store, seeding the default
// categories when none exist yet.
func NewLocalProvider(store *localstore.Store) (*LocalProvider, error) {
	var lists LocalPriceLists
	err := store.Get(PricesKey, &lists)
	if errors.Is(err, localstore.ErrNotFound) {
		lists = make(LocalPriceLists, len(models.DefaultCategories))
		for _, name := range models.DefaultCategories {
			lists[name] = map[string]LocalPrice{}
		}
		if err := store.Set(PricesKey, lists); err != nil {
			return nil, fmt.Errorf("failed to seed categories: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read price lists: %w", err)
	}
	return &LocalProvider{store: store}, nil
}

func (p *LocalProvider) load() (LocalPriceLists, error) {
	var lists LocalPriceLists
	if err := p.store.Get(PricesKey, &lists); err != nil {
		return nil, fmt.Errorf("failed to read price lists: %w", err)
	}
	return lists, nil
}

// ListCategories returns every category sorted by name.
func (p *LocalProvider) ListCategories(ctx context.Context) ([]models.Category, error) {
	lists, err := p.load()
	if err != nil {
		return nil, err
	}
	categories := make([]models.Category, 0, len(lists))
	for name := range lists {
		categories = append(categories, models.Category{ID: name, Name: name})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// ListProducts returns matching products ordered by name, then category.
func (p *LocalProvider) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.PricedProduct, error) {
	lists, err := p.load()
	if err != nil {
		return nil, err
	}

	var products []models.PricedProduct
	for category, prices := range lists {
		for name, entry := range prices {
			product := models.PricedProduct{
				ID:          name,
				Name:        name,
				Type:        entry.Type,
				CategoryKey: category,
				UnitPrice:   entry.Price,
			}
			if product.Type == "" {
				product.Type = models.DefaultProductType()
			}
			if filter.Match(product) {
				products = append(products, product)
			}
		}
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].CategoryKey < products[j].CategoryKey
	})
	return products, nil
}

type priceLiteral string

// UnmarshalYAML keeps the scalar text as written so 1.50 is not read as a float.
func (p *priceLiteral) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a number", n.Line)
	}
	*p = priceLiteral(n.Value)
	return nil
}

type importedPrice struct {
	Type  string       `yaml:"type"`
	Price priceLiteral `yaml:"price"`
}

// ImportPrices merges a YAML price file shaped like the stored lists,
//
//	normal:
//	  Caña: {type: cervezas, price: 1.50}
//
// into the catalog. Nothing is written unless every entry is valid. It
// returns the number of prices written.
func (p *LocalProvider) ImportPrices(r io.Reader) (int, error) {
	var file map[string]map[string]importedPrice
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to parse price file: %w", err)
	}

	parsed := make(LocalPriceLists, len(file))
	count := 0
	for category, prices := range file {
		if strings.TrimSpace(category) == "" {
			return 0, errors.New("price file has an empty category name")
		}
		parsed[category] = make(map[string]LocalPrice, len(prices))
		for name, entry := range prices {
			if strings.TrimSpace(name) == "" {
				return 0, fmt.Errorf("category %s has an empty product name", category)
			}
			productType := entry.Type
			if productType == "" {
				productType = models.DefaultProductType()
			}
			if !slices.Contains(models.ProductTypes, productType) {
				return 0, fmt.Errorf("%s/%s: unknown type %q", category, name, productType)
			}
			price, err := models.MoneyFromString(string(entry.Price))
			if err != nil {
				return 0, fmt.Errorf("%s/%s: %w", category, name, err)
			}
			parsed[category][name] = LocalPrice{Type: productType, Price: price}
			count++
		}
	}

	var lists LocalPriceLists
	err := p.store.Update(PricesKey, &lists, func() error {
		if lists == nil {
			lists = make(LocalPriceLists, len(parsed))
		}
		for category, prices := range parsed {
			if lists[category] == nil {
				lists[category] = make(map[string]LocalPrice, len(prices))
			}
			for name, entry := range prices {
				lists[category][name] = entry
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store prices: %w", err)
	}
	return count, nil
}
