package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"lydistories/internal/app"
	"lydistories/internal/config"
	"lydistories/internal/ratelimit"
	"lydistories/internal/server"
	"lydistories/internal/util"
	"lydistories/pkg/storage"
	"lydistories/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	} else {
		slog.Warn("object storage disabled, file uploads unavailable")
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore := app.New(db, sessions, objects)
	if err := appCore.Bootstrap(app.BootstrapParams{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		SeedCatalog:   cfg.SeedSampleContent,
	}); err != nil {
		log.Fatalf("failed to bootstrap: %v", err)
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		RegisterLimiter: newLimiter(cfg, "register", cfg.RegisterRateLimitPerMinute),
		LoginLimiter:    newLimiter(cfg, "login", cfg.LoginRateLimitPerMinute),
		PaymentLimiter:  newLimiter(cfg, "payment", cfg.PaymentRateLimitPerMinute),
		TrustedProxies:  trusted,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newLimiter(cfg config.FileConfig, name string, perMinute int) *ratelimit.FixedWindowLimiter {
	if perMinute <= 0 || cfg.RedisAddr == "" {
		return nil
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "lydistories:ratelimit:"+name, perMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init %s rate limiter: %v", name, err)
	}
	return limiter
}
