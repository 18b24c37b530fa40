package models

import "strings"

// Role, oturumdaki kullanıcının rolünü temsil eder.
type Role string

const (
	RoleShopper Role = "shopper"
	RoleAdmin   Role = "admin"
)

// ParseRole, sunucudan veya formdan gelen rol değerini çözer.
// Sunucu müşteri rolü için "user" değerini kullanır.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shopper", "user":
		return RoleShopper, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// User, oturum açmış kullanıcıyı temsil eder. Rol oturum boyunca değişmez.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Valid, kayıtlı kullanıcı verisinin eksiksiz olup olmadığını kontrol eder.
func (u User) Valid() bool {
	if u.ID == "" || u.Username == "" {
		return false
	}
	_, ok := ParseRole(string(u.Role))
	return ok
}

// IsAdmin, kullanıcının yönetici olup olmadığını döndürür.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Credentials, giriş ve kayıt formlarını temsil eder.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role,omitempty"`
}

// AuthResult, başarılı giriş veya kayıt sonrası sunucunun döndürdüğü bilgileri temsil eder.
type AuthResult struct {
	Token string
	User  User
}
