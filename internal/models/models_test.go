package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveID_PrefersPrimaryID(t *testing.T) {
	for _, code := range []string{"", "WBH-001", "507f1f77bcf86cd799439011"} {
		p := Product{ID: "507f1f77bcf86cd799439011", Code: code}
		assert.Equal(t, "507f1f77bcf86cd799439011", ResolveID(p))
	}
}

func TestResolveID_FallsBackToCode(t *testing.T) {
	assert.Equal(t, "SWB-002", ResolveID(Product{Code: "SWB-002"}))
	assert.Equal(t, "SWB-002", ResolveID(Product{ID: "", Code: "SWB-002", Name: "Smart Water Bottle"}))
}

func TestCartLine_Subtotal(t *testing.T) {
	l := CartLine{Product: Product{Price: decimal.RequireFromString("45.99")}, CartQuantity: 3}
	assert.True(t, decimal.RequireFromString("137.97").Equal(l.Subtotal()))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "25.50", FormatPrice(decimal.RequireFromString("25.5")))
	assert.Equal(t, "0.30", FormatPrice(decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))))
	assert.Equal(t, "10.00", FormatPrice(decimal.NewFromInt(10)))
}

func TestGenerateCode(t *testing.T) {
	now := time.UnixMilli(1705314600042)
	assert.Equal(t, "ELE-042", GenerateCode("Electronics", now))
	assert.Equal(t, "PRD-042", GenerateCode("  ", now))
	assert.Equal(t, "TV-042", GenerateCode("tv", now))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("user")
	require.True(t, ok)
	assert.Equal(t, RoleShopper, r)

	r, ok = ParseRole("Admin")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestUser_Valid(t *testing.T) {
	assert.True(t, User{ID: "1", Username: "ayse", Role: RoleShopper}.Valid())
	assert.False(t, User{ID: "1", Username: "ayse", Role: "guest"}.Valid())
	assert.False(t, User{Username: "ayse", Role: RoleAdmin}.Valid())
}

func TestValidateProductInput(t *testing.T) {
	valid := ProductInput{Name: "Laptop Stand", Code: "LS-004", Quantity: 8, Price: decimal.RequireFromString("34.99")}
	require.NoError(t, ValidateProductInput(valid))

	tests := []struct {
		name  string
		input ProductInput
		field string
	}{
		{"missing name", ProductInput{Code: "LS-004"}, "name"},
		{"missing code", ProductInput{Name: "Laptop Stand"}, "sku"},
		{"negative quantity", ProductInput{Name: "Laptop Stand", Code: "LS-004", Quantity: -1}, "quantity"},
		{"negative price", ProductInput{Name: "Laptop Stand", Code: "LS-004", Price: decimal.NewFromInt(-3)}, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProductInput(tt.input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateProductPatch(t *testing.T) {
	empty := ""
	negative := -2
	price := decimal.RequireFromString("12.50")

	require.NoError(t, ValidateProductPatch(ProductPatch{Price: &price}))

	var verr *ValidationError
	require.ErrorAs(t, ValidateProductPatch(ProductPatch{}), &verr)
	require.ErrorAs(t, ValidateProductPatch(ProductPatch{Name: &empty}), &verr)
	assert.Equal(t, "name", verr.Field)
	require.ErrorAs(t, ValidateProductPatch(ProductPatch{Quantity: &negative}), &verr)
	assert.Equal(t, "quantity", verr.Field)
}

func TestProductPatch_Apply(t *testing.T) {
	name := "Wireless Headphones"
	qty := 20
	p := ProductPatch{Name: &name, Quantity: &qty}.Apply(Product{ID: "1", Name: "old", Quantity: 25, Code: "WBH-001"})
	assert.Equal(t, "Wireless Headphones", p.Name)
	assert.Equal(t, 20, p.Quantity)
	assert.Equal(t, "WBH-001", p.Code)
}

func TestValidateCredentials(t *testing.T) {
	require.NoError(t, ValidateCredentials(Credentials{Username: "ayse", Password: "secret"}, false))
	require.NoError(t, ValidateCredentials(Credentials{Username: "ayse", Password: "secret", Role: RoleAdmin}, true))

	var verr *ValidationError
	require.ErrorAs(t, ValidateCredentials(Credentials{Username: "ayse"}, false), &verr)
	assert.Equal(t, "password", verr.Field)
	require.ErrorAs(t, ValidateCredentials(Credentials{Username: "ayse", Password: "x", Role: "root"}, true), &verr)
	assert.Equal(t, "role", verr.Field)
}
