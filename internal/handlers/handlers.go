package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vitrin/internal/gateway"
	"vitrin/internal/models"
	"vitrin/internal/services"
)

// Handler, HTTP isteklerini yönetir.
type Handler struct {
	session  *services.SessionStore
	cart     *services.CartStore
	catalog  *services.Catalog
	checkout *services.Checkout
	log      *slog.Logger
}

// NewHandler, yeni bir Handler örneği oluşturur. Oturum kapandığında sepet temizlenir.
func NewHandler(session *services.SessionStore, cart *services.CartStore, catalog *services.Catalog, checkout *services.Checkout, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		session:  session,
		cart:     cart,
		catalog:  catalog,
		checkout: checkout,
		log:      logger,
	}
	session.OnSignedOut(func(ctx context.Context) {
		h.log.InfoContext(ctx, "Handler - session ended, clearing cart")
		cart.Clear()
	})
	return h
}

// Register, tüm rotaları kaydeder.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/", h.HomePage)
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.HandleLogin)
	r.POST("/signup", h.HandleSignup)
	r.POST("/logout", h.HandleLogout)

	user := r.Group("/user")
	user.Use(h.AuthUserMiddleware())
	{
		user.GET("", h.DashboardPage)
		user.GET("/products", h.ProductsPage)
		user.GET("/cart", h.CartPage)
		user.POST("/cart/add", h.AddToCart)
		user.POST("/cart/update", h.UpdateCartItem)
		user.POST("/cart/remove", h.RemoveFromCart)
		user.POST("/cart/clear", h.ClearCart)
		user.POST("/checkout", h.HandleCheckout)
	}

	admin := r.Group("/admin")
	admin.Use(h.AuthUserMiddleware(), h.AdminMiddleware())
	{
		admin.GET("", h.AdminPage)
		admin.POST("/products", h.AddProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
	}
}

// AuthUserMiddleware, oturum açmamış kullanıcıları giriş sayfasına yönlendirir.
func (h *Handler) AuthUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.session.IsAuthenticated() {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware, yönetici olmayan kullanıcıları müşteri paneline yönlendirir.
func (h *Handler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.session.IsAdmin() {
			c.Redirect(http.StatusSeeOther, "/user")
			c.Abort()
			return
		}
		c.Next()
	}
}

// homePath, oturum durumuna göre başlangıç sayfasını döndürür.
func (h *Handler) homePath() string {
	u, ok := h.session.User()
	switch {
	case !ok:
		return "/login"
	case u.IsAdmin():
		return "/admin"
	default:
		return "/user"
	}
}

// fail, servis hatalarını HTTP yanıtına çevirir.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var verr *models.ValidationError
	var apiErr *gateway.APIError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message, "field": verr.Field})
	case errors.Is(err, gateway.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error(), "redirect": "/login"})
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"success": false, "error": apiErr.Message})
	case errors.Is(err, services.ErrSessionClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": fallback})
	default:
		h.log.Error("Handler - unexpected error", slog.String("path", c.FullPath()), slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": fallback})
	}
}

// Health, servisin ayakta olduğunu bildirir.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HomePage, kullanıcıyı rolüne göre yönlendirir.
func (h *Handler) HomePage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, h.homePath())
}

// LoginPage, giriş sayfasının bilgilerini döndürür.
func (h *Handler) LoginPage(c *gin.Context) {
	if h.session.IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, h.homePath())
		return
	}
	actions := gin.H{"login": "/login", "signup": "/signup"}
	c.JSON(http.StatusOK, gin.H{
		"title":   "Giriş Yap",
		"actions": actions,
		"roles":   []models.Role{models.RoleShopper, models.RoleAdmin},
	})
}

// HandleLogin, kullanıcı girişini yönetir.
func (h *Handler) HandleLogin(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz veri"})
		return
	}

	u, err := h.session.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u, "redirect": h.homePath()})
}

// HandleSignup, kullanıcı kayıt işlemini yönetir.
func (h *Handler) HandleSignup(c *gin.Context) {
	var req models.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz veri"})
		return
	}

	u, err := h.session.SignUp(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(c, err, "Signup failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": u, "redirect": h.homePath()})
}

// HandleLogout, oturumu kapatır. Sunucuya ulaşılamasa bile yerel oturum temizlenir.
func (h *Handler) HandleLogout(c *gin.Context) {
	h.session.SignOut(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/login")
}

// pageParams, sayfa ve limit sorgu parametrelerini okur.
func pageParams(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		return 0, 0, false
	}
	return page, limit, true
}

func productView(p models.Product) gin.H {
	return gin.H{
		"id":          models.ResolveID(p),
		"sku":         p.Code,
		"name":        p.Name,
		"type":        p.Category,
		"description": p.Description,
		"price":       models.FormatPrice(p.Price),
		"quantity":    p.Quantity,
		"image_url":   p.ImageURL,
		"in_stock":    p.InStock(),
		"can_add":     p.InStock(),
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

func productsView(products []models.Product) []gin.H {
	out := make([]gin.H, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	return out
}

func cartView(cart models.Cart) gin.H {
	items := make([]gin.H, 0, len(cart.Items))
	for _, l := range cart.Items {
		items = append(items, gin.H{
			"product_id":    models.ResolveID(l.Product),
			"name":          l.Name,
			"price":         models.FormatPrice(l.Price),
			"cart_quantity": l.CartQuantity,
			"available":     l.Quantity,
			"subtotal":      models.FormatPrice(l.Subtotal()),
		})
	}
	return gin.H{
		"items":       items,
		"total_items": cart.TotalItems,
		"total_price": cart.TotalPrice,
	}
}

// DashboardPage, müşteri panelini döndürür: ürünler, sepet ve özet sayılar.
func (h *Handler) DashboardPage(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz sayfa"})
		return
	}
	products, err := h.catalog.Refresh(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to fetch products")
		return
	}

	u, _ := h.session.User()
	cart := h.cart.Summary()
	stats := h.catalog.Stats()
	c.JSON(http.StatusOK, gin.H{
		"title":    "Panel",
		"user":     u,
		"products": productsView(products),
		"cart":     cartView(cart),
		"stats": gin.H{
			"products":     stats.Products,
			"in_stock":     stats.InStock,
			"out_of_stock": stats.OutOfStock,
			"cart_items":   cart.TotalItems,
			"cart_total":   cart.TotalPrice,
		},
	})
}

// ProductsPage, ürün listesini döndürür.
func (h *Handler) ProductsPage(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz sayfa"})
		return
	}
	products, err := h.catalog.Refresh(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to fetch products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": productsView(products), "page": page})
}

// CartPage, sepeti döndürür.
func (h *Handler) CartPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": "Sepetim", "cart": cartView(h.cart.Summary())})
}

type cartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// AddToCart, ürünü sepete ekler.
func (h *Handler) AddToCart(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz veri"})
		return
	}

	product, ok, err := h.catalog.Lookup(c.Request.Context(), req.ProductID)
	if err != nil {
		h.fail(c, err, "Failed to fetch products")
		return
	}
	if !ok {
		h.log.Info("AddToCart - product not found", slog.String("product_id", req.ProductID))
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Ürün bulunamadı"})
		return
	}
	if !product.InStock() {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Ürün stokta yok"})
		return
	}

	h.cart.Add(product)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ürün sepete eklendi", "cart": cartView(h.cart.Summary())})
}

// UpdateCartItem, sepetteki ürün miktarını günceller. Sıfır veya negatif miktar satırı siler.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz veri"})
		return
	}

	h.cart.SetQuantity(req.ProductID, *req.Quantity)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sepet güncellendi", "cart": cartView(h.cart.Summary())})
}

// RemoveFromCart, ürünü sepetten çıkarır.
func (h *Handler) RemoveFromCart(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz veri"})
		return
	}

	h.cart.Remove(req.ProductID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ürün sepetten çıkarıldı", "cart": cartView(h.cart.Summary())})
}

// ClearCart, sepeti boşaltır.
func (h *Handler) ClearCart(c *gin.Context) {
	h.cart.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sepet temizlendi", "cart": cartView(h.cart.Summary())})
}

// HandleCheckout, sepetteki satırları sırayla sunucuya gönderir.
func (h *Handler) HandleCheckout(c *gin.Context) {
	res, err := h.checkout.Run(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Checkout failed")
		return
	}

	if !res.Complete() {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Bazı ürünler gönderilemedi",
			"result":  res,
			"cart":    cartView(h.cart.Summary()),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Siparişiniz alındı", "result": res})
}

// AdminPage, yönetici paneli için ürün listesini döndürür.
func (h *Handler) AdminPage(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Geçersiz sayfa"})
		return
	}
	products, err := h.catalog.Refresh(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to fetch products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":    "Admin Paneli",
		"products": productsView(products),
		"stats":    h.catalog.Stats(),
	})
}

// AddProduct, yeni ürün ekler.
func (h *Handler) AddProduct(c *gin.Context) {
	var form models.ProductInput
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Form verileri eksik veya hatalı"})
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err, "Failed to create product")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Ürün başarıyla eklendi", "product": productView(product)})
}

// UpdateProduct, ürünü günceller ve sepetteki kopyasını tazeler.
func (h *Handler) UpdateProduct(c *gin.Context) {
	id := c.Param("id")
	var patch models.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Form verileri eksik veya hatalı"})
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err, "Failed to update product")
		return
	}
	h.cart.Refresh(product)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ürün başarıyla güncellendi", "product": productView(product)})
}

// DeleteProduct, ürünü siler ve sepetten çıkarır.
func (h *Handler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete product")
		return
	}
	h.cart.Remove(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ürün başarıyla silindi"})
}
