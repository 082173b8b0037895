// Command contentcheck serves the content-migration comparison service.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	contentcheck "github.com/sunzi-skynet/contentcheck-3000"
	"github.com/sunzi-skynet/contentcheck-3000/internal/config"
	"github.com/sunzi-skynet/contentcheck-3000/internal/fetch"
	"github.com/sunzi-skynet/contentcheck-3000/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	var results store.Store = store.NewMemoryStore()
	if cfg.StoreDSN != "" {
		sqlite, err := store.OpenSQLite(cfg.StoreDSN)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		results = sqlite
	}
	defer results.Close()

	fetcher := fetch.New(
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
		fetch.WithTimeout(cfg.Fetch.Timeout.Std()),
		fetch.WithRateLimit(cfg.Fetch.RatePerSec, cfg.Fetch.Burst),
	)

	comparator := contentcheck.NewComparator(
		contentcheck.WithFetcher(fetcher),
		contentcheck.WithStore(results),
		contentcheck.WithSessionTTL(cfg.SessionTTL.Std()),
		contentcheck.WithMaxTextLen(cfg.Fetch.MaxTextLen),
		contentcheck.WithImageHashing(cfg.Fetch.HashImages),
	)

	// Periodic session cleanup keeps expired annotated documents from
	// accumulating.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := comparator.Sessions().CleanupExpired(); removed > 0 {
					comparator.Metrics().SessionsExpired(removed)
					log.Printf("cleaned up %d expired sessions", removed)
				}
			case <-cleanupDone:
				return
			}
		}
	}()

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: contentcheck.Mount(comparator),
	}

	go func() {
		log.Printf("contentcheck listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
