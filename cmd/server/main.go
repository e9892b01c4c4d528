package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/memorial-crm/internal/api"
	"github.com/ignite/memorial-crm/internal/app"
	"github.com/ignite/memorial-crm/internal/config"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[server] Failed to load config: %v", err)
	}
	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("[server] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("[server] Failed to initialize: %v", err)
	}
	defer a.Close()

	runner := api.NewBackfillRunner(ctx, a.Backfill, a.BackfillOptions())
	router := api.SetupRoutes(api.Deps{
		Customers:      a.Customers,
		Lists:          a.Lists,
		Engine:         a.Engine,
		Backfill:       runner,
		Health:         a.Health,
		Metrics:        a.Metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	server := api.NewServer(cfg.Server, router)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[server] Listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] Server error: %v", err)
		}
	}()

	<-done
	log.Println("[server] Shutting down...")

	// Stops a running backfill between chunks.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] Shutdown error: %v", err)
	}
	runner.Wait()

	log.Println("[server] Stopped")
}
