package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"folio/api/internal/app"
	"folio/api/internal/config"
	"folio/api/internal/cors"
	"folio/api/internal/draft"
	"folio/api/internal/notify"
	"folio/api/internal/ratelimit"
	"folio/api/internal/search"
	"folio/api/internal/store"
	"folio/api/internal/uploads"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	service := app.New(cfg, dataStore)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		limiter, err := ratelimit.NewLimiter(cfg.RedisURL, cfg.ContactRateLimit, cfg.ContactRateWindow)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer limiter.Close()
		service.WithLimiter(limiter)
		log.Printf("Contact rate limiting enabled (%d per %s)", cfg.ContactRateLimit, cfg.ContactRateWindow)
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		service.WithDrafter(draft.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.DraftTimeout))
		log.Printf("Reply drafting enabled (%s)", cfg.OpenAIModel)
	}

	if strings.TrimSpace(cfg.SMTPHost) != "" {
		service.WithNotifier(notify.NewService(notify.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			FromName:  cfg.SMTPFromName,
			AdminAddr: cfg.AdminEmail,
			SiteName:  cfg.SiteName,
		}))
		log.Printf("Email notifications enabled")
	}

	pgSearch := search.NewPgSearch(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	service.WithSearch(search.NewService(meiliClient, pgSearch))
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: search index warmup failed: %v", err)
	}

	httpServer := app.NewHTTPServer(service, cors.NewPolicy(cfg.AllowedOrigins))

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		uploadService, err := uploads.NewService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		if err := uploadService.EnsureBucket(ctx); err != nil {
			log.Fatalf("object storage bucket check failed: %v", err)
		}
		httpServer.WithUploads(uploadService)
		log.Printf("Uploads enabled (bucket %s)", cfg.MinioBucket)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Folio API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
