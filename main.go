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

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/GraysonBannister/live-japan-sub000/httputil"
	"github.com/GraysonBannister/live-japan-sub000/logging"
	"github.com/GraysonBannister/live-japan-sub000/scheduler"
	"github.com/GraysonBannister/live-japan-sub000/scraper"
	"github.com/GraysonBannister/live-japan-sub000/server"
	"github.com/GraysonBannister/live-japan-sub000/services"
	"github.com/GraysonBannister/live-japan-sub000/storage"
	"github.com/GraysonBannister/live-japan-sub000/workers"
)

var (
	scrapeNow   = flag.Bool("scrape", false, "Run scrape + ingest once and exit")
	maintainNow = flag.Bool("maintain", false, "Run the daily maintenance job once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting listing daemon...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, %s)", site.Name, id, site.Transport)
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy configured: %s", cfg.Proxy.URL)
	}

	ctx := context.Background()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

	snapshot, err := storage.NewSnapshotStore(cfg.SnapshotDBPath)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer snapshot.Close()
	log.Printf("Snapshot database: %s", cfg.SnapshotDBPath)

	orchestrator := scraper.NewOrchestrator(cfg, clients, snapshot)
	ingestService := services.NewIngestService(store)
	maintenanceService := services.NewMaintenanceService(store)

	runScrape := func(ctx context.Context) error {
		listings, run := orchestrator.ScrapeAll(ctx)
		if err := store.CreateScrapeRun(ctx, run); err != nil {
			log.Printf("Warning: could not record scrape run: %v", err)
		}

		summary := ingestService.Ingest(ctx, listings)
		log.Printf("Run %d: %d listings, %d created, %d updated, %d skipped",
			run.ID, len(listings), summary.Created, summary.Updated, summary.Skipped)

		if run.ID != 0 {
			if err := store.UpdateScrapeRun(ctx, run); err != nil {
				log.Printf("Warning: could not update scrape run: %v", err)
			}
		}
		return nil
	}
	runMaintenance := func(ctx context.Context) error {
		_, err := maintenanceService.RunDaily(ctx)
		return err
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := runScrape(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}
	if *maintainNow {
		log.Println("Running maintenance...")
		if err := runMaintenance(ctx); err != nil {
			log.Fatalf("Maintenance failed: %v", err)
		}
		log.Println("Maintenance complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, runScrape, runMaintenance)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	availabilityWorker := workers.NewAvailabilityWorker(store, clients.Scraping)
	go availabilityWorker.Run(ctx, 20, 30*time.Minute)
	log.Println("Availability worker started")

	if cfg.S3.Enabled() {
		archive, err := storage.NewPhotoArchive(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to init photo archive: %v", err)
		}
		photoWorker := workers.NewPhotoWorker(store, archive, clients.Scraping)
		go photoWorker.Run(ctx, 50, 10*time.Minute)
		log.Println("Photo worker started")
	} else {
		log.Println("Photo archiving disabled (no S3 credentials)")
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(maintenanceService, cfg.MaintenanceSecret).Router(),
	}
	go func() {
		log.Printf("Maintenance endpoints listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
