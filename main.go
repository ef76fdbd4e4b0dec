package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"har_importer/config"
	"har_importer/feed"
	"har_importer/importer"
	"har_importer/logging"
	"har_importer/scheduler"
	"har_importer/storage"
	"har_importer/workers"
)

var (
	importNow = flag.Bool("import", false, "Run one import and exit")
	migrate   = flag.Bool("migrate", false, "Run database migrations and exit")
	showRuns  = flag.Int("runs", 0, "Print the N most recent import runs and exit")
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

	if *showRuns > 0 {
		opsStore, err := storage.NewSQLiteStore(cfg.OpsDBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		defer opsStore.Close()
		if err := printRuns(opsStore, *showRuns); err != nil {
			log.Fatalf("Read run history: %v", err)
		}
		return
	}

	log.Println("Starting har_importer...")

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

	if *migrate {
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations complete")
		return
	}

	feedClient, err := feed.NewClient(cfg.Feed.URL, cfg.Feed.Filter, cfg.Feed.Timeout)
	if err != nil {
		log.Fatalf("Feed client: %v", err)
	}

	opsStore, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer opsStore.Close()
	log.Printf("Run history database: %s", cfg.OpsDBPath)

	imp := importer.New(feedClient, pgStore, opsStore, importer.Options{
		OwnerID:   cfg.Importer.OwnerID,
		PageSize:  cfg.Feed.PageSize,
		PageDelay: cfg.Feed.PageDelay,
	})

	if *importNow {
		log.Println("Running import...")
		summary, err := imp.Run(ctx, cfg.Importer.MaxRecords, "manual")
		if summary != nil {
			log.Printf("Import result: %s", summary)
		}
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, imp, nil)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("S3 uploader: %v", err)
		}
		photoWorker := workers.NewPhotoWorker(pgStore, uploader, nil)
		go photoWorker.Run(ctx, cfg.Photos.BatchSize, cfg.Photos.Interval)
		log.Println("Photo worker started")
	} else {
		log.Println("S3 not configured, photo mirroring disabled")
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// printRuns dumps recent run history, with the log lines of the most
// recent run for quick triage of a failed import.
func printRuns(ops *storage.SQLiteStore, limit int) error {
	runs, err := ops.GetRecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no import runs recorded")
		return nil
	}

	for _, run := range runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Format(time.RFC3339)
		}
		fmt.Printf("#%d %s [%s] %s imported=%d skipped=%d errored=%d batches=%d",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Trigger, run.Status,
			run.Imported, run.Skipped, run.Errored, run.Batches)
		if run.ErrorMessage != "" {
			fmt.Printf(" error=%q", run.ErrorMessage)
		}
		fmt.Printf(" (finished %s)\n", finished)
	}

	logs, err := ops.GetRunLogs(runs[0].ID)
	if err != nil {
		return err
	}
	for _, entry := range logs {
		fmt.Printf("  %s [%s] %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
	}
	return nil
}

// maskConnectionString hides the password portion of a database URL.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd < 0 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]

	atIdx := strings.Index(rest, "@")
	if atIdx < 0 {
		return connStr
	}
	colonIdx := strings.Index(rest[:atIdx], ":")
	if colonIdx < 0 {
		return connStr
	}

	return connStr[:schemeEnd+3] + rest[:colonIdx+1] + "****" + rest[atIdx:]
}
