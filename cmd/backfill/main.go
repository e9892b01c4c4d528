// Command backfill re-synchronizes customer collections with the search
// index and prints the run summary as JSON. It exits 1 when any collection
// ends in the error status.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ignite/memorial-crm/internal/app"
	"github.com/ignite/memorial-crm/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	collections := flag.String("collections", "", "comma-separated collections (default from config)")
	skipCanonical := flag.Bool("skip-canonical", false, "do not write region sidecars back to the store")
	skipIndex := flag.Bool("skip-index", false, "do not write to the search index")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[backfill] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("[backfill] Failed to initialize: %v", err)
	}
	defer a.Close()

	opts := a.BackfillOptions()
	if *collections != "" {
		opts.Collections = strings.Split(*collections, ",")
	}
	opts.SkipCanonical = *skipCanonical
	opts.SkipIndex = *skipIndex

	summary, runErr := a.Backfill.Run(ctx, opts)
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Printf("[backfill] Failed to write summary: %v", err)
		}
	}
	if runErr != nil {
		log.Printf("[backfill] Run stopped: %v", runErr)
		a.Close()
		os.Exit(1)
	}
	if summary.HasErrors() {
		a.Close()
		os.Exit(1)
	}
}
