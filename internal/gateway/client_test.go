package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrin/internal/gateway/gatewaytest"
	"vitrin/internal/models"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func seedCatalog(srv *gatewaytest.Server) (models.Product, models.Product) {
	a := srv.AddProduct(models.Product{Code: "WBH-001", Name: "Wireless Headphones", Category: "Electronics", Price: decimal.RequireFromString("99.99"), Quantity: 25, ImageURL: "https://example.com/h.jpg"})
	b := srv.AddProduct(models.Product{Code: "SWB-002", Name: "Smart Water Bottle", Category: "Fitness", Price: decimal.RequireFromString("45.99"), Quantity: 3})
	return a, b
}

func TestListProducts_NormalizesFields(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	a, _ := seedCatalog(srv)

	c := New(srv.URL)
	products, err := c.ListProducts(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, a.ID, products[0].ID)
	assert.Equal(t, "WBH-001", products[0].Code)
	assert.Equal(t, "https://example.com/h.jpg", products[0].ImageURL)
	assert.True(t, decimal.RequireFromString("99.99").Equal(products[0].Price))
	assert.Equal(t, 25, products[0].Quantity)
}

func TestListProducts_Pagination(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	_, b := seedCatalog(srv)

	products, err := New(srv.URL).ListProducts(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, b.ID, products[0].ID)
}

func TestProductRecord_AlternateSpellings(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":42,"sku":"LS-004","name":"Laptop Stand","price":"34.99","quantity":8,"image_url":"/img/ls.png"},{"sku":"NO-ID","name":"Loose","price":1,"quantity":1}]}`))
	}))
	defer ts.Close()

	products, err := New(ts.URL).ListProducts(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "42", products[0].ID)
	assert.Equal(t, "/img/ls.png", products[0].ImageURL)
	assert.Equal(t, "NO-ID", models.ResolveID(products[1]))
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", http.StatusBadRequest, `{"message":"Name is required"}`, "Name is required"},
		{"error field", http.StatusConflict, `{"error":"SKU already exists"}`, "SKU already exists"},
		{"nested error", http.StatusBadRequest, `{"error":{"message":"bad sku"}}`, "bad sku"},
		{"empty body", http.StatusInternalServerError, ``, "Failed to fetch products"},
		{"html body", http.StatusBadGateway, `<html>oops</html>`, "Failed to fetch products"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := New(ts.URL).ListProducts(context.Background(), 1, 10)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Error())
			assert.False(t, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestTransportFailureUsesFallback(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, WithTimeout(time.Second)).SignIn(context.Background(), "ayse", "secret")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, "Login failed", apiErr.Error())
	assert.NotNil(t, errors.Unwrap(err))
}

func TestSignUpAndSignIn(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	res, err := c.SignUp(ctx, "ayse", "secret", models.RoleShopper)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ayse", res.User.Username)
	assert.Equal(t, models.RoleShopper, res.User.Role)
	assert.True(t, res.User.Valid())

	res, err = c.SignIn(ctx, "ayse", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = c.SignUp(ctx, "ayse", "other", models.RoleShopper)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Username already exists", apiErr.Message)
}

func TestUnauthorizedRunsHook(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	a, _ := seedCatalog(srv)

	calls := 0
	c := New(srv.URL, WithTokenSource(staticToken("not-a-jwt")))
	c.OnUnauthorized(func(context.Context) { calls++ })

	_, err := c.Checkout(context.Background(), a.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid token", apiErr.Message)
}

func TestSignInRejectionSkipsHook(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	srv.AddUser("ayse", "secret", models.RoleShopper)

	calls := 0
	c := New(srv.URL, WithTokenSource(staticToken("stale")))
	c.OnUnauthorized(func(context.Context) { calls++ })

	_, err := c.SignIn(context.Background(), "ayse", "typo")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, calls)
}

func TestAdminProductLifecycle(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	admin := srv.AddUser("root", "pw", models.RoleAdmin)
	token := srv.IssueToken(admin, time.Now().Add(time.Hour))
	c := New(srv.URL, WithTokenSource(staticToken(token)))
	ctx := context.Background()

	created, err := c.CreateProduct(ctx, models.ProductInput{
		Name:     "Laptop Stand",
		Code:     "LS-004",
		Category: "Accessories",
		Quantity: 8,
		Price:    decimal.RequireFromString("34.99"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, decimal.RequireFromString("34.99").Equal(created.Price))

	qty := 5
	updated, err := c.UpdateProduct(ctx, created.ID, models.ProductPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "Laptop Stand", updated.Name)

	deleted, err := c.DeleteProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = c.DeleteProduct(ctx, created.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Product not found", apiErr.Message)
}

func TestShopperCannotMutateCatalog(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	a, _ := seedCatalog(srv)
	shopper := srv.AddUser("ayse", "pw", models.RoleShopper)
	c := New(srv.URL, WithTokenSource(staticToken(srv.IssueToken(shopper, time.Now().Add(time.Hour)))))

	_, err := c.DeleteProduct(context.Background(), a.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestCheckoutDeductsStock(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()
	_, b := seedCatalog(srv)
	shopper := srv.AddUser("ayse", "pw", models.RoleShopper)
	c := New(srv.URL, WithTokenSource(staticToken(srv.IssueToken(shopper, time.Now().Add(time.Hour)))))

	p, err := c.Checkout(context.Background(), b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)

	_, err = c.Checkout(context.Background(), b.ID, 2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Insufficient stock", apiErr.Message)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"data":{"message":"ok"}}`))
	}))
	defer ts.Close()

	require.NoError(t, New(ts.URL, WithTokenSource(staticToken("abc"))).Logout(context.Background()))
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}
