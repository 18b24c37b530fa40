package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"vitrin/internal/config"
	"vitrin/internal/database"
	"vitrin/internal/gateway"
	"vitrin/internal/handlers"
	"vitrin/internal/logger"
	"vitrin/internal/services"
	"vitrin/internal/shutdown"
	"vitrin/internal/telemetry"
)

const (
	serviceName     = "vitrin"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv("VITRIN_CONFIG"), "YAML yapılandırma dosyası")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("uygulama durdu", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: serviceName,
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	stopTracing, err := telemetry.Setup(telemetry.Options{
		Service: serviceName,
		Enabled: cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stopTracing(flushCtx); err != nil {
			log.Warn("tracer kapatılamadı", "err", err)
		}
	}()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("depo başlatılamadı: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("depo kapatılamadı", "err", err)
		}
	}()

	sessionOpts := []services.SessionOption{services.WithSessionLogger(log)}
	if cfg.SecurityLog != "" {
		security, err := services.NewSecurityLogger(cfg.SecurityLog)
		if err != nil {
			return fmt.Errorf("güvenlik logu açılamadı: %w", err)
		}
		sessionOpts = append(sessionOpts, services.WithSecurityLogger(security))
	}

	gw := gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithTokenSource(database.StoredToken{Store: store}),
		gateway.WithLogger(log),
	)

	session := services.NewSessionStore(store, gw, sessionOpts...)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("oturum kapatılamadı", "err", err)
		}
	}()
	gw.OnUnauthorized(session.ForceSignOut)

	if session.Restore(ctx) {
		user, _ := session.User()
		log.Info("oturum geri yüklendi", "username", user.Username, "role", user.Role)
	}

	cart := services.NewCartStore(log)
	catalog := services.NewCatalog(gw, cfg.PageSize, log)
	checkout := services.NewCheckout(cart, catalog, gw, log)

	r, err := newRouter(cfg, handlers.NewHandler(session, cart, catalog, checkout, log))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLS.Enabled {
		cert, err := loadCertificate(cfg.TLS)
		if err != nil {
			return fmt.Errorf("sertifika yüklenemedi: %w", err)
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP sunucusu başlatılıyor", "addr", srv.Addr, "tls", cfg.TLS.Enabled, "api", cfg.APIBaseURL)
		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP sunucusu başlatılamadı: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("kapanış sinyali alındı")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sunucu kapatılamadı: %w", err)
	}
	log.Info("sunucu durduruldu")
	return nil
}

// openStore, yapılandırılan sürücüye göre oturum deposunu açar
func openStore(ctx context.Context, cfg config.Storage) (database.Store, error) {
	switch cfg.Driver {
	case config.StorageRedis:
		return database.NewRedisStore(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case config.StorageMemory:
		return database.NewMemoryStore(), nil
	default:
		return database.NewJSONDatabase(cfg.Path)
	}
}

func newRouter(cfg config.Config, h *handlers.Handler) (*gin.Engine, error) {
	if logger.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	proxies := cfg.TrustedProxies
	if len(proxies) == 0 {
		proxies = []string{"127.0.0.1", "::1"}
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	h.Register(r)
	return r, nil
}
