// Package catalog provides the read-only product catalog, its HTTP client
// and the category and search filters used to browse it.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// Service lists catalog products.
type Service interface {
	// ListAll returns every product of the catalog.
	ListAll(ctx context.Context) ([]models.Product, error)
	// GetByID returns the product with id, or nil if there is none.
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

// Static is an in-memory catalog.
type Static struct {
	products []models.Product
}

// NewStatic creates a catalog serving products in the given order.
func NewStatic(products []models.Product) *Static {
	return &Static{products: append([]models.Product(nil), products...)}
}

// ListAll returns a copy of the catalog.
func (s *Static) ListAll(context.Context) ([]models.Product, error) {
	return append([]models.Product(nil), s.products...), nil
}

// GetByID returns the product with id, or nil if there is none.
func (s *Static) GetByID(_ context.Context, id string) (*models.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

type catalogFile struct {
	Products []models.Product `json:"products" yaml:"products" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a catalog from a YAML or JSON file. The format is chosen
// by extension; anything other than .json is parsed as YAML.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f catalogFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(f.Products))
	for _, p := range f.Products {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("invalid catalog %s: duplicate product id %q", path, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return NewStatic(f.Products), nil
}

func rating(v float64) *float64 { return &v }

// Seed returns the demo catalog.
func Seed() []models.Product {
	return []models.Product{
		{
			ID:          "1",
			Name:        "Wireless Earbuds",
			Price:       79.99,
			Image:       "https://images.unsplash.com/photo-1572569511254-d8f925fe2cbb?auto=format&fit=crop&w=400",
			Description: "High-quality wireless earbuds with noise cancellation. Perfect for commuting, working out, or just enjoying your favorite music without the hassle of wires.",
			Category:    "Electronics",
			Rating:      rating(4.5),
		},
		{
			ID:          "2",
			Name:        "Smart Watch",
			Price:       199.99,
			Image:       "https://images.unsplash.com/photo-1546868871-7041f2a55e12?auto=format&fit=crop&w=400",
			Description: "Track your fitness and stay connected with this smartwatch. Features include heart rate monitoring, GPS, step tracking, and phone notifications.",
			Category:    "Electronics",
			Rating:      rating(4.7),
		},
		{
			ID:          "3",
			Name:        "Portable Speaker",
			Price:       49.99,
			Image:       "https://images.unsplash.com/photo-1608043152269-423dbba4e7e1?auto=format&fit=crop&w=400",
			Description: "Compact Bluetooth speaker with amazing sound quality. Water-resistant design makes it perfect for outdoor adventures or poolside parties.",
			Category:    "Electronics",
			Rating:      rating(4.3),
		},
		{
			ID:          "4",
			Name:        "Leather Wallet",
			Price:       29.99,
			Image:       "https://images.unsplash.com/photo-1627123424574-724758594e93?auto=format&fit=crop&w=400",
			Description: "Genuine leather wallet with multiple card slots. Slim design fits comfortably in your pocket while providing ample storage for cards and cash.",
			Category:    "Accessories",
			Rating:      rating(4.8),
		},
		{
			ID:          "5",
			Name:        "Backpack",
			Price:       59.99,
			Image:       "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?auto=format&fit=crop&w=400",
			Description: "Stylish and functional backpack for everyday use. Features multiple compartments, laptop sleeve, and water bottle holders.",
			Category:    "Accessories",
			Rating:      rating(4.6),
		},
		{
			ID:          "6",
			Name:        "Smartphone Case",
			Price:       19.99,
			Image:       "https://images.unsplash.com/photo-1592805144716-febd04720a61?auto=format&fit=crop&w=400",
			Description: "Durable protective case for your smartphone. Shock-absorbent design provides excellent protection without adding bulk.",
			Category:    "Accessories",
			Rating:      rating(4.4),
		},
	}
}
