package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Oturum güvenlik olayları.
const (
	EventSignIn        = "sign_in"
	EventSignInFailed  = "sign_in_failed"
	EventSignUp        = "sign_up"
	EventSignUpFailed  = "sign_up_failed"
	EventSignOut       = "sign_out"
	EventForcedSignOut = "forced_sign_out"
	EventRestoreFailed = "restore_failed"
)

// SecurityLogger, güvenlik olaylarını ayrı bir dosyaya JSON satırları olarak yazar.
// Nil bir SecurityLogger güvenle kullanılabilir ve hiçbir şey yazmaz.
type SecurityLogger struct {
	file *os.File
	log  *slog.Logger
}

// NewSecurityLogger, verilen dosyayı ekleme kipinde açar.
func NewSecurityLogger(path string) (*SecurityLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create security log dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("güvenlik log dosyası oluşturulamadı: %w", err)
	}
	return &SecurityLogger{
		file: file,
		log:  slog.New(slog.NewJSONHandler(file, nil)).With(slog.String("stream", "security")),
	}, nil
}

// LogSecurityEvent, güvenlik olayını loglar.
func (sl *SecurityLogger) LogSecurityEvent(ctx context.Context, eventType, username, details string) {
	if sl == nil || sl.log == nil {
		return
	}
	sl.log.InfoContext(ctx, eventType,
		slog.String("username", username),
		slog.String("details", details),
	)
}

// Close, log dosyasını kapatır.
func (sl *SecurityLogger) Close() error {
	if sl == nil || sl.file == nil {
		return nil
	}
	return sl.file.Close()
}
