package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nrekik/b1-purchasing-portal/internal/catalog"
	"github.com/nrekik/b1-purchasing-portal/internal/config"
	"github.com/nrekik/b1-purchasing-portal/internal/servicelayer"
	"github.com/nrekik/b1-purchasing-portal/internal/session"
	"github.com/nrekik/b1-purchasing-portal/internal/state"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run state DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()

	dbConn, err := state.Open(cfg.App.StateDSN)
	if err != nil {
		log.Fatalf("Failed to open state database: %v", err)
	}
	if *migrateOnlyFlag {
		log.Println("Migrations completed successfully")
		return
	}

	slClient, err := servicelayer.New(cfg.ServiceLayer.BaseURL)
	if err != nil {
		log.Fatalf("Invalid SERVICE_LAYER_URL: %v", err)
	}

	store := state.NewStore(dbConn)
	sessions := session.NewManager(slClient, store, cfg.App.LogoutFailOpen)
	articles := catalog.NewStore(slClient, store, cfg.App.PageSize, cfg.App.FallbackDocDate)

	// The browsing state belongs to one session: drop it whenever the
	// session ends (logout, expiry, stale restore).
	sessions.OnSessionEnd(articles.Teardown)
	sessions.Restore()

	appHandler := NewApp(cfg, sessions, articles, slClient, store)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(appHandler),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Printf("Portal listening on port %s (service layer %s)", cfg.Server.Port, cfg.ServiceLayer.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// withLogging logs every request with its duration.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
