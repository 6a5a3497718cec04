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

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"agora/api/internal/app"
	"agora/api/internal/config"
	"agora/api/internal/notify"
	"agora/api/internal/search"
	"agora/api/internal/store"
)

func main() {
	_ = godotenv.Load()

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

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var publisher *notify.Publisher
	if strings.TrimSpace(cfg.RedisURL) != "" {
		publisher, err = notify.NewPublisher(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer publisher.Close()
		log.Printf("Publishing engine events to Redis")
	} else {
		log.Printf("REDIS_URL not set, event publishing disabled")
	}

	// Sub-channel creation stays locked until the location collaborator is
	// wired in; every other operation works without it.
	var authorizeLocation app.LocationAuthorizer
	log.Printf("No location authorizer configured, sub-channel creation disabled")

	service := app.NewService(dataStore, publisher, searchService, authorizeLocation, cfg.FlagThreshold)

	writeLimit := rate.NewLimiter(rate.Limit(cfg.WriteRPS), cfg.WriteBurst)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, writeLimit)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Agora API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
