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

	"dealdesk/api/internal/app"
	"dealdesk/api/internal/blob"
	"dealdesk/api/internal/config"
	"dealdesk/api/internal/match"
	"dealdesk/api/internal/memolog"
	"dealdesk/api/internal/narrative"
	"dealdesk/api/internal/resolver"
	"dealdesk/api/internal/search"
	"dealdesk/api/internal/session"
	"dealdesk/api/internal/store"
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

	if err := os.MkdirAll(cfg.MemoReposDir, 0o755); err != nil {
		log.Fatalf("failed to create memo repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	memoRepos := memolog.New(cfg.MemoReposDir)

	pglike := search.NewPgLike(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pglike)

	var scorer match.NarrativeScorer
	if strings.TrimSpace(cfg.NarrativeURL) != "" {
		scorer = narrative.New(cfg.NarrativeURL, cfg.NarrativeAPIKey, cfg.NarrativeTimeout)
		log.Printf("narrative scorer enabled at %s", cfg.NarrativeURL)
	} else {
		log.Printf("narrative scorer disabled; enhanced matching degrades to rule scores")
	}

	var blobs *blob.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		log.Printf("memo attachments stored in bucket %s", cfg.MinioBucket)
	} else {
		log.Printf("object store disabled; memo attachments unavailable")
	}

	var contextResolver resolver.Resolver
	switch cfg.AuthMode {
	case "header":
		log.Printf("WARNING: header auth mode trusts x-* identity headers; use only behind an authenticating proxy")
		contextResolver = resolver.NewHeaderResolver()
	default:
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		contextResolver = resolver.NewSessionResolver([]byte(cfg.AuthSecret), redisStore)
	}

	service := app.New(cfg, dataStore, searchService, scorer, memoRepos, blobs)
	httpServer := app.NewHTTPServer(service, contextResolver, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("DealDesk API listening on %s", cfg.Addr)
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
