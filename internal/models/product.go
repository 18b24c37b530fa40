package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product, katalogdaki satılabilir bir ürünü temsil eder.
// İstemcideki kopya geçicidir; bir değişiklikten sonra sunucudan dönen kayıt esas alınır.
type Product struct {
	ID          string          `json:"id,omitempty"`
	Code        string          `json:"sku,omitempty"`
	Name        string          `json:"name"`
	Category    string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ResolveID, ürünün kimlik anahtarını döndürür: birincil ID varsa o, yoksa stok kodu.
// Ürünleri arayan, karşılaştıran veya anahtar olarak kullanan her yer bu fonksiyonu kullanmalıdır.
func ResolveID(p Product) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Code
}

// InStock, ürünün satılabilir stoğu olup olmadığını döndürür.
func (p Product) InStock() bool {
	return p.Quantity > 0
}

// ProductInput, yeni ürün oluşturma formunu temsil eder.
type ProductInput struct {
	Name        string          `json:"name" validate:"required"`
	Category    string          `json:"type"`
	Code        string          `json:"sku" validate:"required"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

// ProductPatch, ürün güncelleme formunu temsil eder. Nil alanlar gönderilmez.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Category    *string          `json:"type,omitempty"`
	Code        *string          `json:"sku,omitempty" validate:"omitempty,min=1"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Description *string          `json:"description,omitempty"`
	Quantity    *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// Empty, yamada hiç alan olup olmadığını kontrol eder.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Code == nil && p.ImageURL == nil &&
		p.Description == nil && p.Quantity == nil && p.Price == nil
}

// Apply, yamayı ürünün bir kopyasına uygular.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Code != nil {
		product.Code = *p.Code
	}
	if p.ImageURL != nil {
		product.ImageURL = *p.ImageURL
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	return product
}

// GenerateCode, stok kodu boş bırakılan ürünler için kategoriden bir kod üretir (ör. ELE-042).
func GenerateCode(category string, now time.Time) string {
	prefix := strings.ToUpper(strings.TrimSpace(category))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if prefix == "" {
		prefix = "PRD"
	}
	return fmt.Sprintf("%s-%03d", prefix, now.UnixMilli()%1000)
}

// FormatPrice, fiyatı yalnızca gösterim için iki ondalık basamağa yuvarlar.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}
