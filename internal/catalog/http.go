package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// HTTPClient fetches the catalog from a product service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a catalog client for the product service at baseURL.
// A nil client falls back to http.DefaultClient.
func NewHTTPClient(client *http.Client, baseURL string) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// ListAll fetches GET /api/products.
func (c *HTTPClient) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	found, err := c.get(ctx, "/api/products", &products)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("list products: endpoint not found")
	}
	return products, nil
}

// GetByID fetches GET /api/products/{id}. A 404 yields (nil, nil).
func (c *HTTPClient) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	found, err := c.get(ctx, "/api/products/"+url.PathEscape(id), &p)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("server error: %s", strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("invalid response: %w", err)
	}
	return true, nil
}
