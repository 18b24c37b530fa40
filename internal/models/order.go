package models

// CheckoutLine, ödeme sırasında gönderilen bir sepet satırının sonucunu temsil eder.
type CheckoutLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Error     string `json:"error,omitempty"`
}

// CheckoutResult, ödeme işleminin özetini temsil eder.
// Başarılı satırlar sepetten çıkarılır, başarısız satırlar sepette kalır.
type CheckoutResult struct {
	Submitted  []CheckoutLine `json:"submitted"`
	Failed     []CheckoutLine `json:"failed"`
	TotalItems int            `json:"total_items"`
	TotalPrice string         `json:"total_price"`
}

// Complete, tüm satırların sunucu tarafından kabul edilip edilmediğini döndürür.
func (r CheckoutResult) Complete() bool {
	return len(r.Failed) == 0 && len(r.Submitted) > 0
}
