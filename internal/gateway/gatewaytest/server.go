// Package gatewaytest runs an in-process fake of the catalog and auth API for tests.
package gatewaytest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"vitrin/internal/models"
)

// TokenTTL, sahte sunucunun verdiği token'ların geçerlilik süresidir.
const TokenTTL = time.Hour

type account struct {
	user         models.User
	passwordHash []byte
}

// Server, testler için sahte API sunucusudur.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	secret        []byte
	accounts      map[string]*account
	products      []models.Product
	revoked       map[string]bool
	failCheckout  map[string]string
	failLogout    bool
	logoutCalls   int
	checkoutCalls []string
}

// NewServer, sahte sunucuyu başlatır. Kapatmak için Close çağrılmalıdır.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		secret:       []byte(uuid.NewString()),
		accounts:     map[string]*account{},
		revoked:      map[string]bool{},
		failCheckout: map[string]string{},
	}

	r := gin.New()
	r.POST("/auth/v1/signup", s.signUp)
	r.POST("/auth/v1/signin", s.signIn)
	r.POST("/auth/v1/logout", s.authenticate(false), s.logout)

	r.GET("/products/v1", s.listProducts)
	r.POST("/products/v1/checkout", s.authenticate(false), s.checkout)
	r.POST("/products/v1", s.authenticate(true), s.createProduct)
	r.PUT("/products/v1/:id", s.authenticate(true), s.updateProduct)
	r.DELETE("/products/v1/:id", s.authenticate(true), s.deleteProduct)

	s.Server = httptest.NewServer(r)
	return s
}

// AddUser, sunucuya doğrudan bir hesap ekler.
func (s *Server) AddUser(username, password string, role models.Role) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := models.User{ID: uuid.NewString(), Username: username, Role: role}
	s.mu.Lock()
	s.accounts[username] = &account{user: u, passwordHash: hash}
	s.mu.Unlock()
	return u
}

// AddProduct, kataloğa bir ürün ekler ve kimliği atanmış halini döndürür.
func (s *Server) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products = append(s.products, p)
	return p
}

// Product, sunucudaki ürünün güncel halini döndürür.
func (s *Server) Product(id string) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Product{}, false
	}
	return s.products[i], true
}

// IssueToken, verilen son geçerlilik zamanıyla imzalı bir token üretir.
func (s *Server) IssueToken(u models.User, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"role":     wireRole(u.Role),
		"iat":      time.Now().Unix(),
		"exp":      exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// RevokeAll, verilmiş tüm token'ları geçersiz kılar; sonraki yetkili istekler 401 alır.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked["*"] = true
}

// FailLogout, çıkış isteğinin 500 ile başarısız olmasını sağlar.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// FailCheckout, verilen ürün için ödeme isteğini mesajla reddeder.
func (s *Server) FailCheckout(productID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCheckout[productID] = message
}

// LogoutCalls, sunucuya ulaşan çıkış isteklerinin sayısıdır.
func (s *Server) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}

// CheckoutCalls, ödeme istenen ürün kimliklerini geliş sırasıyla döndürür.
func (s *Server) CheckoutCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.checkoutCalls...)
}

func wireRole(r models.Role) string {
	if r == models.RoleShopper {
		return "user"
	}
	return string(r)
}

func (s *Server) indexOf(id string) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// productJSON, ürünü sunucunun kullandığı alan adlarıyla yazar (_id, imageUrl).
func productJSON(p models.Product) gin.H {
	return gin.H{
		"_id":         p.ID,
		"sku":         p.Code,
		"name":        p.Name,
		"type":        p.Category,
		"description": p.Description,
		"price":       json.Number(p.Price.String()),
		"quantity":    p.Quantity,
		"imageUrl":    p.ImageURL,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

func userJSON(u models.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username, "role": wireRole(u.Role)}
}

func (s *Server) authenticate(adminOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing token"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		s.mu.Lock()
		revoked := s.revoked["*"] || s.revoked[raw]
		s.mu.Unlock()
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token revoked"})
			return
		}

		role, _ := claims["role"].(string)
		if adminOnly && role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Set("token", raw)
		c.Next()
	}
}

type authBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) signUp(c *gin.Context) {
	var req authBody
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}
	role := models.RoleShopper
	switch req.Role {
	case "", "user":
	case "admin":
		role = models.RoleAdmin
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[req.Username]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusConflict, gin.H{"message": "Username already exists"})
		return
	}

	u := s.AddUser(req.Username, req.Password, role)
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"token": s.IssueToken(u, time.Now().Add(TokenTTL)),
		"user":  userJSON(u),
	}})
}

func (s *Server) signIn(c *gin.Context) {
	var req authBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{})
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token": s.IssueToken(acc.user, time.Now().Add(TokenTTL)),
		"user":  userJSON(acc.user),
	}})
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	if s.failLogout {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Logout unavailable"})
		return
	}
	s.revoked[c.GetString("token")] = true
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Logged out"}})
}

func (s *Server) listProducts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid page"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid limit"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []gin.H{}
	start := (page - 1) * limit
	for i := start; i < len(s.products) && i < start+limit; i++ {
		out = append(out, productJSON(s.products[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

type productBody struct {
	Name        *string          `json:"name"`
	Type        *string          `json:"type"`
	SKU         *string          `json:"sku"`
	ImageURL    *string          `json:"image_url"`
	Description *string          `json:"description"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
}

func (b productBody) patch() models.ProductPatch {
	return models.ProductPatch{
		Name:        b.Name,
		Category:    b.Type,
		Code:        b.SKU,
		ImageURL:    b.ImageURL,
		Description: b.Description,
		Quantity:    b.Quantity,
		Price:       b.Price,
	}
}

func (b productBody) validate() error {
	if b.Quantity != nil && *b.Quantity < 0 {
		return errors.New("Quantity cannot be negative")
	}
	if b.Price != nil && b.Price.IsNegative() {
		return errors.New("Price cannot be negative")
	}
	return nil
}

func (s *Server) createProduct(c *gin.Context) {
	var req productBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product"})
		return
	}
	if req.Name == nil || *req.Name == "" || req.SKU == nil || *req.SKU == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name and SKU are required"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	for _, p := range s.products {
		if p.Code == *req.SKU {
			s.mu.Unlock()
			c.JSON(http.StatusConflict, gin.H{"message": "SKU already exists"})
			return
		}
	}
	s.mu.Unlock()

	p := s.AddProduct(req.patch().Apply(models.Product{}))
	c.JSON(http.StatusCreated, gin.H{"data": productJSON(p)})
}

func (s *Server) updateProduct(c *gin.Context) {
	var req productBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}
	p := req.patch().Apply(s.products[i])
	p.UpdatedAt = time.Now().UTC()
	s.products[i] = p
	c.JSON(http.StatusOK, gin.H{"data": productJSON(p)})
}

func (s *Server) deleteProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	p := s.products[i]
	s.products = append(s.products[:i], s.products[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"data": productJSON(p)})
}

type checkoutBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// checkout, tek bir sepet satırı için stoktan düşer.
func (s *Server) checkout(c *gin.Context) {
	var req checkoutBody
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid checkout request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkoutCalls = append(s.checkoutCalls, req.ProductID)
	if msg, ok := s.failCheckout[req.ProductID]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	i := s.indexOf(req.ProductID)
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}
	if s.products[i].Quantity < req.Quantity {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Insufficient stock"})
		return
	}
	s.products[i].Quantity -= req.Quantity
	s.products[i].UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{"data": productJSON(s.products[i])})
}
