package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vitrin/internal/database"
	"vitrin/internal/models"
)

// ErrSessionClosed, oturum deposu kapatıldıktan sonra gelen sonuçlar için döner.
var ErrSessionClosed = errors.New("session store closed")

// AuthGateway, oturum deposunun ihtiyaç duyduğu kimlik doğrulama çağrılarıdır.
type AuthGateway interface {
	SignIn(ctx context.Context, username, password string) (models.AuthResult, error)
	SignUp(ctx context.Context, username, password string, role models.Role) (models.AuthResult, error)
	Logout(ctx context.Context) error
}

// SessionStore, süreçteki tek oturumun sahibidir. Durum ya Anonim ya da Oturum Açık'tır;
// token ve kullanıcı kaydı depoya birlikte yazılır ve birlikte silinir.
type SessionStore struct {
	mu        sync.Mutex
	store     database.Store
	auth      AuthGateway
	claims    ClaimsDecoder
	security  *SecurityLogger
	now       func() time.Time
	log       *slog.Logger
	user      *models.User
	token     string
	listeners []func(ctx context.Context)
	closed    bool
}

// SessionOption, SessionStore'u yapılandırır.
type SessionOption func(*SessionStore)

// WithClock, süre kontrolünde kullanılan saati değiştirir.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// WithClaimsDecoder, token çözücüyü değiştirir.
func WithClaimsDecoder(d ClaimsDecoder) SessionOption {
	return func(s *SessionStore) { s.claims = d }
}

// WithSecurityLogger, güvenlik olaylarının yazılacağı logger'ı ayarlar.
func WithSecurityLogger(sl *SecurityLogger) SessionOption {
	return func(s *SessionStore) { s.security = sl }
}

// WithSessionLogger, uygulama logger'ını ayarlar.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *SessionStore) { s.log = l }
}

// NewSessionStore, yeni bir SessionStore oluşturur. Başlangıçta durum Anonim'dir;
// kayıtlı oturum için Restore çağrılmalıdır.
func NewSessionStore(store database.Store, auth AuthGateway, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		store:  store,
		auth:   auth,
		claims: NewJWTDecoder(),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnSignedOut, oturum kapandığında çağrılacak bir dinleyici ekler.
func (s *SessionStore) OnSignedOut(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Restore, depodaki token ve kullanıcı kaydını okur. Token'ın süresi geçmemişse ve
// kullanıcı kaydı geçerliyse oturum açılır. Geçersiz kayıtta iki anahtar da silinir;
// depo okunamazsa kayıtlara dokunulmaz.
func (s *SessionStore) Restore(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, token, reason, err := s.readPersisted(ctx)
	if err != nil {
		s.log.Warn("SessionStore.Restore - storage unavailable, keeping stored session", slog.Any("err", err))
		s.user, s.token = nil, ""
		return false
	}
	if reason != "" {
		s.log.Info("SessionStore.Restore - no session", slog.String("reason", reason))
		if reason != "no stored token" {
			s.security.LogSecurityEvent(ctx, EventRestoreFailed, "", reason)
		}
		if err := s.store.Delete(ctx, database.TokenKey, database.UserKey); err != nil {
			s.log.Warn("SessionStore.Restore - could not discard stored session", slog.Any("err", err))
		}
		s.user, s.token = nil, ""
		return false
	}

	s.user, s.token = &user, token
	s.log.Info("SessionStore.Restore - session restored", slog.String("username", user.Username), slog.String("role", string(user.Role)))
	return true
}

// readPersisted, kayıtlı oturumu çözer. reason geçersiz kaydı, err ise okuma hatasını bildirir.
func (s *SessionStore) readPersisted(ctx context.Context) (models.User, string, string, error) {
	token, ok, err := s.store.Get(ctx, database.TokenKey)
	if err != nil {
		return models.User{}, "", "", fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		return models.User{}, "", "no stored token", nil
	}

	exp, err := s.claims.Expiry(token)
	if err != nil {
		return models.User{}, "", err.Error(), nil
	}
	if exp == nil {
		return models.User{}, "", "token has no expiry", nil
	}
	if !exp.After(s.now()) {
		return models.User{}, "", "token expired", nil
	}

	raw, ok, err := s.store.Get(ctx, database.UserKey)
	if err != nil {
		return models.User{}, "", "", fmt.Errorf("read user: %w", err)
	}
	if !ok {
		return models.User{}, "", "no stored user", nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.User{}, "", fmt.Sprintf("decode user: %v", err), nil
	}
	if !user.Valid() {
		return models.User{}, "", "invalid user record", nil
	}
	user.Role, _ = models.ParseRole(string(user.Role))
	return user, token, "", nil
}

// SignIn, kullanıcıyı doğrular ve başarılı olursa oturumu açar. Başarısızlıkta durum değişmez.
func (s *SessionStore) SignIn(ctx context.Context, username, password string) (models.User, error) {
	if err := models.ValidateCredentials(models.Credentials{Username: username, Password: password}, false); err != nil {
		return models.User{}, err
	}

	res, err := s.auth.SignIn(ctx, username, password)
	if err != nil {
		s.log.Info("SessionStore.SignIn - failed", slog.String("username", username), slog.Any("err", err))
		s.security.LogSecurityEvent(ctx, EventSignInFailed, username, err.Error())
		return models.User{}, err
	}
	if err := s.establish(ctx, res); err != nil {
		return models.User{}, err
	}
	s.security.LogSecurityEvent(ctx, EventSignIn, username, string(res.User.Role))
	return res.User, nil
}

// SignUp, yeni hesap oluşturur ve oturumu açar. Rol boşsa müşteri kabul edilir.
// Sunucudan gelen hata değiştirilmeden döndürülür.
func (s *SessionStore) SignUp(ctx context.Context, username, password string, role models.Role) (models.User, error) {
	if err := models.ValidateCredentials(models.Credentials{Username: username, Password: password, Role: role}, true); err != nil {
		return models.User{}, err
	}
	if role == "" {
		role = models.RoleShopper
	}
	role, _ = models.ParseRole(string(role))

	res, err := s.auth.SignUp(ctx, username, password, role)
	if err != nil {
		s.log.Info("SessionStore.SignUp - failed", slog.String("username", username), slog.Any("err", err))
		s.security.LogSecurityEvent(ctx, EventSignUpFailed, username, err.Error())
		return models.User{}, err
	}
	if err := s.establish(ctx, res); err != nil {
		return models.User{}, err
	}
	s.security.LogSecurityEvent(ctx, EventSignUp, username, string(res.User.Role))
	return res.User, nil
}

// establish, token ve kullanıcı kaydını birlikte yazar ve durumu günceller.
// Başka bir kullanıcı ya da rol ile giriş yapılırsa önceki oturum kapanmış sayılır.
func (s *SessionStore) establish(ctx context.Context, res models.AuthResult) error {
	if res.Token == "" || !res.User.Valid() {
		return errors.New("incomplete authentication response")
	}
	raw, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	if err := s.store.Set(ctx, database.TokenKey, res.Token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.store.Set(ctx, database.UserKey, string(raw)); err != nil {
		if delErr := s.store.Delete(ctx, database.TokenKey); delErr != nil {
			s.log.Warn("SessionStore.establish - rollback failed", slog.Any("err", delErr))
		}
		s.mu.Unlock()
		return fmt.Errorf("persist user: %w", err)
	}

	prev := s.user
	user := res.User
	s.user, s.token = &user, res.Token
	listeners := append([]func(context.Context){}, s.listeners...)
	s.mu.Unlock()

	s.log.Info("SessionStore - signed in", slog.String("username", user.Username), slog.String("role", string(user.Role)))
	if prev == nil || (prev.ID == user.ID && prev.Role == user.Role) {
		return nil
	}
	s.log.Info("SessionStore - previous session replaced", slog.String("username", prev.Username))
	s.security.LogSecurityEvent(ctx, EventSignOut, prev.Username, "replaced by "+user.Username)
	for _, fn := range listeners {
		fn(ctx)
	}
	return nil
}

// SignOut, sunucuya çıkış bildirir ve sonucu ne olursa olsun yerel oturumu temizler.
func (s *SessionStore) SignOut(ctx context.Context) {
	if s.IsAuthenticated() {
		if err := s.auth.Logout(ctx); err != nil {
			s.log.Warn("SessionStore.SignOut - remote logout failed, clearing local session", slog.Any("err", err))
		}
	}
	s.teardown(ctx, EventSignOut)
}

// ForceSignOut, yetkisiz yanıt alındığında sunucuya gitmeden oturumu kapatır.
func (s *SessionStore) ForceSignOut(ctx context.Context) {
	s.teardown(ctx, EventForcedSignOut)
}

func (s *SessionStore) teardown(ctx context.Context, event string) {
	s.mu.Lock()
	keys := append([]string{database.TokenKey, database.UserKey}, database.LegacyKeys...)
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.Warn("SessionStore.teardown - could not clear storage", slog.Any("err", err))
	}
	var username string
	wasAuthenticated := s.user != nil
	if wasAuthenticated {
		username = s.user.Username
	}
	s.user, s.token = nil, ""
	listeners := append([]func(context.Context){}, s.listeners...)
	s.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	s.log.Info("SessionStore - signed out", slog.String("username", username), slog.String("event", event))
	s.security.LogSecurityEvent(ctx, event, username, "")
	for _, fn := range listeners {
		fn(ctx)
	}
}

// IsAuthenticated, oturumun açık olup olmadığını döndürür.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// IsAdmin, oturum sahibinin yönetici olup olmadığını döndürür.
func (s *SessionStore) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.IsAdmin()
}

// User, oturum sahibini döndürür.
func (s *SessionStore) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token, oturumun bearer token'ını döndürür; anonimken boştur.
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Close, depoyu kapatır. Sonradan gelen giriş sonuçları yok sayılır.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.security.Close()
}
