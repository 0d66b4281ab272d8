package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renaissancebro/refactor-agent/internal/config"
	"github.com/renaissancebro/refactor-agent/internal/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.OpenAI.APIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, refactor endpoint will return 503")
	}
	if cfg.StripeSecretKey == "" {
		log.Println("Warning: STRIPE_SECRET_KEY not set, using the no-op payment processor")
	}

	mux, deps, err := httpapi.NewRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Background services.
	deps.UsageWorker.Start(context.Background())
	deps.Sweeper.Start(context.Background())

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // the agent call can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Refactor Agent gateway listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain background services before closing stores.
	deps.Sweeper.Stop()
	if err := deps.UsageWorker.Stop(); err != nil {
		log.Printf("Failed to stop usage worker: %v", err)
	}
	deps.TxLogger.Shutdown()

	if err := deps.Close(); err != nil {
		log.Printf("Failed to close dependencies: %v", err)
	}

	log.Println("Server exited")
}
