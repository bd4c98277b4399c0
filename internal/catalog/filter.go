package catalog

import (
	"strings"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// AllCategories is the category value that selects every product.
const AllCategories = "all"

// ByCategory returns the products whose category equals category, ignoring
// case. AllCategories returns products unchanged. The input is never modified.
func ByCategory(products []models.Product, category string) []models.Product {
	if strings.EqualFold(category, AllCategories) {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the tab values for products: AllCategories followed by
// the distinct lower-cased categories in first-seen order.
func Categories(products []models.Product) []string {
	out := []string{AllCategories}
	seen := map[string]struct{}{AllCategories: {}}
	for _, p := range products {
		c := strings.ToLower(p.Category)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// GroupByCategory buckets products by lower-cased category, keeping the
// input order inside each bucket.
func GroupByCategory(products []models.Product) map[string][]models.Product {
	groups := make(map[string][]models.Product)
	for _, p := range products {
		c := strings.ToLower(p.Category)
		groups[c] = append(groups[c], p)
	}
	return groups
}

// Search returns the products matching any whitespace-separated term of
// query as a case-insensitive substring of name, description and category.
// A blank query matches nothing. Result order follows the input.
func Search(products []models.Product, query string) []models.Product {
	terms := strings.Fields(strings.ToLower(query))
	out := make([]models.Product, 0)
	if len(terms) == 0 {
		return out
	}
	for _, p := range products {
		text := strings.ToLower(p.Name + " " + p.Description + " " + p.Category)
		for _, term := range terms {
			if strings.Contains(text, term) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
