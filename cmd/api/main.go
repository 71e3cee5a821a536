package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pawdiary/backend/internal/config"
	"pawdiary/backend/internal/db"
	"pawdiary/backend/internal/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}
	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		log.Fatalf("database schema mismatch: %v", err)
	}
	if err := server.SeedCompanions(ctx, pool); err != nil {
		log.Fatalf("companion seed failed: %v", err)
	}

	var cache *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		cache = redis.NewClient(opts)
		if err := cache.Ping(ctx).Err(); err != nil {
			// Redis only backs caches; run without it rather than refuse to boot.
			log.Printf("redis unavailable, caching disabled: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var model server.ModelCaller
	if strings.TrimSpace(cfg.AIAPIKey) == "" {
		log.Printf("AI_API_KEY not set, using mock model caller")
		model = server.MockModelCaller{Model: cfg.AIModel}
	} else {
		client, err := server.NewChatCompletionsClient(cfg)
		if err != nil {
			log.Fatalf("AI client init failed: %v", err)
		}
		model = client
	}

	app := server.New(cfg, pool, cache, model)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("pawdiary api listening on http://localhost:%s", cfg.AppPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
