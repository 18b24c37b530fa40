package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vitrin/internal/gateway"
	"vitrin/internal/models"
)

// LowStockThreshold, bu sayının altındaki stok az kabul edilir.
const LowStockThreshold = 10

// maxLookupPages, Lookup'ın sunucuda tarayacağı en fazla sayfa sayısıdır.
const maxLookupPages = 50

// CatalogGateway, katalog için gereken REST çağrılarıdır.
type CatalogGateway interface {
	ListProducts(ctx context.Context, page, limit int) ([]models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) (models.Product, error)
	Checkout(ctx context.Context, productID string, quantity int) (models.Product, error)
}

// CatalogStats, panellerdeki özet sayılardır.
type CatalogStats struct {
	Products   int `json:"products"`
	InStock    int `json:"in_stock"`
	OutOfStock int `json:"out_of_stock"`
	LowStock   int `json:"low_stock"`
}

// Catalog, sunucudaki ürünlerin istemcideki kopyasıdır. items son listelenen sayfayı,
// known ise o ana kadar görülen bütün ürünleri tutar.
// Bu kopya hiçbir zaman esas alınmaz; her değişiklikten sonra sunucunun döndürdüğü kayıtla güncellenir.
type Catalog struct {
	mu       sync.RWMutex
	gw       CatalogGateway
	items    []models.Product
	known    map[string]models.Product
	pageSize int
	now      func() time.Time
	log      *slog.Logger
}

// NewCatalog, yeni bir Catalog oluşturur. pageSize sıfırsa sunucu varsayılanı kullanılır.
func NewCatalog(gw CatalogGateway, pageSize int, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{gw: gw, known: map[string]models.Product{}, pageSize: pageSize, now: time.Now, log: logger}
}

// remember, ürünleri bilinen ürünlere ekler. Çağıran kilidi tutmalıdır.
func (c *Catalog) remember(products ...models.Product) {
	for _, p := range products {
		c.known[models.ResolveID(p)] = p
	}
}

// Refresh, verilen sayfayı sunucudan çeker ve listelenen sayfayı değiştirir.
func (c *Catalog) Refresh(ctx context.Context, page, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = c.pageSize
	}
	items, err := c.gw.ListProducts(ctx, page, limit)
	if err != nil {
		c.log.Warn("Catalog.Refresh - list failed", slog.Any("err", err))
		return nil, err
	}

	c.mu.Lock()
	c.items = items
	c.remember(items...)
	c.mu.Unlock()
	c.log.Debug("Catalog.Refresh - loaded products", slog.Int("count", len(items)))
	return append([]models.Product(nil), items...), nil
}

// Items, yerel kopyadaki ürünleri döndürür.
func (c *Catalog) Items() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Product(nil), c.items...)
}

// Find, daha önce görülmüş bir ürünü kimliğine göre bulur.
func (c *Catalog) Find(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.known[id]
	return p, ok
}

// Lookup, ürünü yerel kopyada arar; bulamazsa sunucudaki sayfaları sırayla tarar.
// Taranan sayfalar bilinen ürünlere eklenir, listelenen sayfa değişmez.
func (c *Catalog) Lookup(ctx context.Context, id string) (models.Product, bool, error) {
	if p, ok := c.Find(id); ok {
		return p, true, nil
	}

	limit := c.pageSize
	if limit <= 0 {
		limit = gateway.DefaultLimit
	}
	for page := 1; page <= maxLookupPages; page++ {
		items, err := c.gw.ListProducts(ctx, page, limit)
		if err != nil {
			c.log.Warn("Catalog.Lookup - list failed", slog.Int("page", page), slog.Any("err", err))
			return models.Product{}, false, err
		}

		c.mu.Lock()
		c.remember(items...)
		p, ok := c.known[id]
		c.mu.Unlock()
		if ok {
			return p, true, nil
		}
		if len(items) < limit {
			break
		}
	}
	c.log.Debug("Catalog.Lookup - product not found", slog.String("id", id))
	return models.Product{}, false, nil
}

// Patch, sunucudan dönen kaydı yerel kopyaya yazar. Listelenen sayfada yoksa yalnızca bilinen ürünler güncellenir.
func (c *Catalog) Patch(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remember(p)
	id := models.ResolveID(p)
	for i := range c.items {
		if models.ResolveID(c.items[i]) == id {
			c.items[i] = p
			return
		}
	}
}

// Create, formu doğrular ve ürünü oluşturur. Stok kodu boşsa kategoriden üretilir.
func (c *Catalog) Create(ctx context.Context, in models.ProductInput) (models.Product, error) {
	if in.Code == "" {
		in.Code = models.GenerateCode(in.Category, c.now())
	}
	if err := models.ValidateProductInput(in); err != nil {
		return models.Product{}, err
	}

	p, err := c.gw.CreateProduct(ctx, in)
	if err != nil {
		c.log.Warn("Catalog.Create - failed", slog.String("sku", in.Code), slog.Any("err", err))
		return models.Product{}, err
	}

	c.mu.Lock()
	c.items = append(c.items, p)
	c.remember(p)
	c.mu.Unlock()
	c.log.Info("Catalog.Create - product created", slog.String("id", models.ResolveID(p)), slog.String("sku", p.Code))
	return p, nil
}

// Update, yalnızca doldurulan alanları gönderir ve dönen kaydı yerel kopyaya yazar.
func (c *Catalog) Update(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	if err := models.ValidateProductPatch(patch); err != nil {
		return models.Product{}, err
	}

	p, err := c.gw.UpdateProduct(ctx, id, patch)
	if err != nil {
		c.log.Warn("Catalog.Update - failed", slog.String("id", id), slog.Any("err", err))
		return models.Product{}, err
	}
	c.Patch(p)
	c.log.Info("Catalog.Update - product updated", slog.String("id", id))
	return p, nil
}

// Delete, ürünü siler ve yerel kopyadan çıkarır.
func (c *Catalog) Delete(ctx context.Context, id string) (models.Product, error) {
	p, err := c.gw.DeleteProduct(ctx, id)
	if err != nil {
		c.log.Warn("Catalog.Delete - failed", slog.String("id", id), slog.Any("err", err))
		return models.Product{}, err
	}

	c.mu.Lock()
	delete(c.known, id)
	for i := range c.items {
		if models.ResolveID(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.log.Info("Catalog.Delete - product deleted", slog.String("id", id))
	return p, nil
}

// Stats, listelenen sayfadaki ürünleri stok durumuna göre sayar.
func (c *Catalog) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := CatalogStats{Products: len(c.items)}
	for _, p := range c.items {
		switch {
		case !p.InStock():
			s.OutOfStock++
		case p.Quantity < LowStockThreshold:
			s.InStock++
			s.LowStock++
		default:
			s.InStock++
		}
	}
	return s
}
