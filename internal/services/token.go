package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsDecoder, token içeriğini çözer ve varsa son geçerlilik zamanını döndürür.
// İmza doğrulaması sunucunun işidir; istemci yalnızca süreyi okur.
type ClaimsDecoder interface {
	Expiry(token string) (*time.Time, error)
}

// JWTDecoder, JWT token'larını imza doğrulamadan çözer.
type JWTDecoder struct {
	parser *jwt.Parser
}

// NewJWTDecoder, yeni bir JWTDecoder oluşturur.
func NewJWTDecoder() *JWTDecoder {
	return &JWTDecoder{parser: jwt.NewParser()}
}

// Expiry, "exp" alanını döndürür. Alan yoksa nil döner.
func (d *JWTDecoder) Expiry(token string) (*time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("decode token expiry: %w", err)
	}
	if exp == nil {
		return nil, nil
	}
	t := exp.Time
	return &t, nil
}
