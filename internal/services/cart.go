package services

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"vitrin/internal/models"
)

// CartStore, sepet işlemlerini yönetir. Satırlar eklenme sırasını korur ve her ürün
// kimliği için en fazla bir satır bulunur. Hiçbir işlem ağ çağrısı yapmaz veya hata döndürmez.
type CartStore struct {
	mu    sync.Mutex
	lines []models.CartLine
	log   *slog.Logger
}

// NewCartStore, boş bir sepet oluşturur.
func NewCartStore(logger *slog.Logger) *CartStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartStore{log: logger}
}

func (cs *CartStore) indexOf(id string) int {
	for i, l := range cs.lines {
		if models.ResolveID(l.Product) == id {
			return i
		}
	}
	return -1
}

func (cs *CartStore) removeAt(i int) {
	cs.lines = append(cs.lines[:i], cs.lines[i+1:]...)
}

// Add, ürünü sepete ekler. Ürün zaten varsa miktar bir artırılır ve stokla sınırlanır;
// sınır aşıldığında sessizce stok miktarında kalır. Stoğu olmayan ürün eklenmez.
func (cs *CartStore) Add(item models.Product) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	id := models.ResolveID(item)
	if i := cs.indexOf(id); i >= 0 {
		q := min(cs.lines[i].CartQuantity+1, item.Quantity)
		if q <= 0 {
			cs.log.Debug("CartStore.Add - product sold out, removing line", slog.String("product_id", id))
			cs.removeAt(i)
			return
		}
		cs.lines[i].Product = item
		cs.lines[i].CartQuantity = q
		cs.log.Debug("CartStore.Add - updated line", slog.String("product_id", id), slog.Int("quantity", q))
		return
	}

	if !item.InStock() {
		cs.log.Debug("CartStore.Add - product out of stock", slog.String("product_id", id))
		return
	}
	cs.lines = append(cs.lines, models.CartLine{Product: item, CartQuantity: 1})
	cs.log.Debug("CartStore.Add - added new line", slog.String("product_id", id))
}

// Remove, ürünü sepetten kaldırır. Sepette olmayan ürün için bir şey yapmaz.
func (cs *CartStore) Remove(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if i := cs.indexOf(id); i >= 0 {
		cs.removeAt(i)
	}
}

// SetQuantity, satırın miktarını değiştirir. Sıfır veya negatif miktar satırı kaldırır,
// stoktan büyük miktar stokla sınırlanır.
func (cs *CartStore) SetQuantity(id string, quantity int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	i := cs.indexOf(id)
	if i < 0 {
		return
	}
	q := min(quantity, cs.lines[i].Quantity)
	if q <= 0 {
		cs.removeAt(i)
		return
	}
	cs.lines[i].CartQuantity = q
}

// Refresh, sepetteki ürün bilgisini sunucudan gelen kayıtla günceller ve miktarı yeniden sınırlar.
func (cs *CartStore) Refresh(item models.Product) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	i := cs.indexOf(models.ResolveID(item))
	if i < 0 {
		return
	}
	cs.lines[i].Product = item
	if q := min(cs.lines[i].CartQuantity, item.Quantity); q > 0 {
		cs.lines[i].CartQuantity = q
		return
	}
	cs.removeAt(i)
}

// Clear, sepeti temizler.
func (cs *CartStore) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lines = nil
}

// TotalItems, sepetteki toplam ürün adedini döndürür.
func (cs *CartStore) TotalItems() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	total := 0
	for _, l := range cs.lines {
		total += l.CartQuantity
	}
	return total
}

// TotalPrice, sepet tutarını yuvarlamadan döndürür.
func (cs *CartStore) TotalPrice() decimal.Decimal {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return totalOf(cs.lines)
}

func totalOf(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines, satırların bir kopyasını döndürür.
func (cs *CartStore) Lines() []models.CartLine {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]models.CartLine(nil), cs.lines...)
}

// Line, kimliğe göre bir satırı döndürür.
func (cs *CartStore) Line(id string) (models.CartLine, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if i := cs.indexOf(id); i >= 0 {
		return cs.lines[i], true
	}
	return models.CartLine{}, false
}

// Summary, sepetin gösterime hazır özetini döndürür.
func (cs *CartStore) Summary() models.Cart {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	items := append([]models.CartLine{}, cs.lines...)
	total := 0
	for _, l := range items {
		total += l.CartQuantity
	}
	return models.Cart{
		Items:      items,
		TotalItems: total,
		TotalPrice: models.FormatPrice(totalOf(items)),
	}
}
