package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"vitrin/internal/models"
)

// Pagination defaults used when the caller passes zero values.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// productRecord is the product as the API sends it. The API has used both
// id/_id and imageUrl/image_url, so both spellings are read.
type productRecord struct {
	ID          flexID          `json:"id"`
	MongoID     flexID          `json:"_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
	ImageURLAlt string          `json:"image_url"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (r productRecord) toProduct() models.Product {
	p := models.Product{
		ID:          string(r.ID),
		Code:        r.SKU,
		Name:        r.Name,
		Category:    r.Type,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if p.ID == "" {
		p.ID = string(r.MongoID)
	}
	if p.ImageURL == "" {
		p.ImageURL = r.ImageURLAlt
	}
	return p
}

type productPayload struct {
	Name        *string      `json:"name,omitempty"`
	Type        *string      `json:"type,omitempty"`
	SKU         *string      `json:"sku,omitempty"`
	ImageURL    *string      `json:"image_url,omitempty"`
	Description *string      `json:"description,omitempty"`
	Quantity    *int         `json:"quantity,omitempty"`
	Price       *json.Number `json:"price,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func number(d decimal.Decimal) *json.Number {
	n := json.Number(d.String())
	return &n
}

func createPayload(in models.ProductInput) productPayload {
	return productPayload{
		Name:        &in.Name,
		Type:        optional(in.Category),
		SKU:         &in.Code,
		ImageURL:    optional(in.ImageURL),
		Description: optional(in.Description),
		Quantity:    &in.Quantity,
		Price:       number(in.Price),
	}
}

func patchPayload(p models.ProductPatch) productPayload {
	out := productPayload{
		Name:        p.Name,
		Type:        p.Category,
		SKU:         p.Code,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Quantity:    p.Quantity,
	}
	if p.Price != nil {
		out.Price = number(*p.Price)
	}
	return out
}

// ListProducts calls GET /products/v1?page&limit.
func (c *Client) ListProducts(ctx context.Context, page, limit int) ([]models.Product, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out []productRecord
	if err := c.do(ctx, http.MethodGet, "/products/v1?"+q.Encode(), false, nil, &out, "Failed to fetch products"); err != nil {
		return nil, err
	}
	products := make([]models.Product, 0, len(out))
	for _, r := range out {
		products = append(products, r.toProduct())
	}
	return products, nil
}

// CreateProduct calls POST /products/v1.
func (c *Client) CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error) {
	var out productRecord
	if err := c.do(ctx, http.MethodPost, "/products/v1", true, createPayload(in), &out, "Failed to create product"); err != nil {
		return models.Product{}, err
	}
	return out.toProduct(), nil
}

// UpdateProduct calls PUT /products/v1/{id} with only the fields set in the patch.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	var out productRecord
	if err := c.do(ctx, http.MethodPut, productPath(id), true, patchPayload(patch), &out, "Failed to update product"); err != nil {
		return models.Product{}, err
	}
	return out.toProduct(), nil
}

// DeleteProduct calls DELETE /products/v1/{id} and returns the deleted record.
func (c *Client) DeleteProduct(ctx context.Context, id string) (models.Product, error) {
	var out productRecord
	if err := c.do(ctx, http.MethodDelete, productPath(id), true, nil, &out, "Failed to delete product"); err != nil {
		return models.Product{}, err
	}
	return out.toProduct(), nil
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Checkout calls POST /products/v1/checkout for a single cart line.
func (c *Client) Checkout(ctx context.Context, productID string, quantity int) (models.Product, error) {
	var out productRecord
	req := checkoutRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/products/v1/checkout", true, req, &out, "Checkout failed"); err != nil {
		return models.Product{}, err
	}
	return out.toProduct(), nil
}
