package models

import "github.com/shopspring/decimal"

// CartLine, sepetteki bir ürünü ve istenen miktarı temsil eder.
type CartLine struct {
	Product
	CartQuantity int `json:"cart_quantity"`
}

// Subtotal, satırın yuvarlanmamış tutarını döndürür.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.CartQuantity)))
}

// Cart, sepetin gösterime hazır özetini temsil eder.
type Cart struct {
	Items      []CartLine `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice string     `json:"total_price"`
}
