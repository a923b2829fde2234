package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ys-23412/sbcontest2/classify"
	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/ingest"
	"github.com/ys-23412/sbcontest2/logging"
	"github.com/ys-23412/sbcontest2/models"
	"github.com/ys-23412/sbcontest2/scheduler"
	"github.com/ys-23412/sbcontest2/scraper"
	"github.com/ys-23412/sbcontest2/storage"
	"github.com/ys-23412/sbcontest2/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run all sites once and exit")
	siteOnly  = flag.String("site", "", "Run a single site once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting sbcontest2...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, %s)", site.Name, id, site.Variant)
	}

	ctx := context.Background()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	artifacts, err := storage.NewArtifactWriter(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to create artifact dir: %v", err)
	}

	api := ingest.NewClient(cfg.API.URL, cfg.API.AgentID, cfg.API.UserID)
	notifier := ingest.NewNotifier(cfg.Discord.WebhookURL)

	orchestrator := scraper.NewOrchestrator(cfg, store, artifacts, api, notifier)

	var workflowRuns *ingest.WorkflowRuns
	if cfg.GitHub.Repo != "" {
		workflowRuns = ingest.NewWorkflowRuns(cfg.GitHub.Repo, cfg.GitHub.Token)
		orchestrator.SetLastRunLookup(func(ctx context.Context) (time.Time, error) {
			return workflowRuns.LastSuccessfulRun(ctx, cfg.GitHub.WorkflowName)
		})
	}

	if cfg.PostgresURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		orchestrator.SetPostgres(pgStore)
		log.Println("Entry archive enabled")
	}

	if cfg.Gemini.APIKey != "" {
		classifier, err := classify.NewGeminiClassifier(ctx, cfg.Gemini.APIKey)
		if err != nil {
			log.Fatalf("Failed to create classifier: %v", err)
		}
		defer classifier.Close()
		orchestrator.SetClassifier(classifier)
	} else {
		log.Println("GOOGLE_API_KEY not set, entries will use project type 0")
	}

	if *siteOnly != "" {
		log.Printf("Running site %s...", *siteOnly)
		if err := orchestrator.RunSite(ctx, *siteOnly); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	health := workers.NewHealthcheckWorker(cfg, notifier)
	health.SetLogger(func(level models.LogLevel, source, message string) {
		if err := store.Log(nil, level, message, source); err != nil {
			log.Printf("Ledger write failed: %v", err)
		}
	})

	sched := scheduler.New(cfg, orchestrator)
	if workflowRuns != nil {
		sched.SetWorkflowRuns(workflowRuns)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	go health.Run(ctx, time.Hour)

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}
