package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/imagevault/pipeline/internal/config"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/infra/postgres"
	"github.com/imagevault/pipeline/internal/pipeline/jobmonitor"
	"github.com/imagevault/pipeline/internal/pipeline/libraryautoscan"
)

// autoScanInterval is the poll cadence for discovering auto-scan libraries.
// It is a fixed constant, not read from PIPELINE_* env vars. The job
// monitor and DLQ recovery timings are fixed the same way inside
// jobmonitor.New and dlqrecovery.NewService; the PIPELINE_JOB_MONITOR_*
// and PIPELINE_DLQ_* values that internal/config loads are not passed to
// them.
const autoScanInterval = 1 * time.Hour

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	busCfg := messagebus.LoadConfigFromEnv()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database successfully")

	libraries := postgres.NewLibraryRegistry(dbPool)
	jobs := jobstate.NewService(postgres.NewJobStateRepository(dbPool))

	bus := messagebus.NewBus(busCfg)

	trigger := libraryautoscan.New(libraries, jobs, bus.Client(), autoScanInterval)
	monitor := jobmonitor.New(jobs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := trigger.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("libraryautoscan: stopped with error: %v", err)
		}
	}()

	go func() {
		if err := monitor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("jobmonitor: stopped with error: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","scheduler":"running"}`)
	})

	healthServer := &http.Server{
		Addr:    ":8082",
		Handler: healthMux,
	}

	go func() {
		log.Println("Health check server starting on :8082")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health check server error: %v", err)
		}
	}()

	log.Println("Scheduler started: library auto-scan sweep + job monitor running")

	<-sigChan
	log.Println("Shutdown signal received, stopping scheduler...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Health server shutdown error: %v", err)
	}

	bus.Stop()

	log.Println("Scheduler stopped")
}
