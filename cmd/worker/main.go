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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/imagevault/pipeline/internal/config"
	"github.com/imagevault/pipeline/internal/domain/jobstate"
	"github.com/imagevault/pipeline/internal/infra/artifactstore"
	"github.com/imagevault/pipeline/internal/infra/imageprocessor"
	"github.com/imagevault/pipeline/internal/infra/messagebus"
	"github.com/imagevault/pipeline/internal/infra/postgres"
	"github.com/imagevault/pipeline/internal/pipeline/batchgen"
	"github.com/imagevault/pipeline/internal/pipeline/bulkops"
	"github.com/imagevault/pipeline/internal/pipeline/collectionscan"
	"github.com/imagevault/pipeline/internal/pipeline/dlqrecovery"
	"github.com/imagevault/pipeline/internal/pipeline/imageprocessing"
	"github.com/imagevault/pipeline/internal/pipeline/jobmonitor"
	"github.com/imagevault/pipeline/internal/pipeline/libraryscan"
	"github.com/imagevault/pipeline/internal/pipeline/resume"
)

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

	store, err := artifactstore.NewLocalStore(cfg.ArtifactRoot)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}
	processor := imageprocessor.NewProcessor(imageprocessor.DefaultConfig())

	collections := postgres.NewCollectionRepository(dbPool)
	jobs := jobstate.NewService(postgres.NewJobStateRepository(dbPool))

	bus := messagebus.NewBus(busCfg)

	libraryScanConsumer := libraryscan.NewConsumer(collections, bus.Client())
	collectionScanConsumer := collectionscan.NewConsumer(collections, jobs, bus.Client())
	imageProcessingConsumer := imageprocessing.NewConsumer(collections, jobs, bus.Client())
	generator := batchgen.NewGenerator(collections, jobs, processor, store, busCfg)
	resumer := resume.NewCoordinator(collections, jobs, bus.Client())
	bulkConsumer := bulkops.NewConsumer(bus.Client(), resumer)

	mux := asynq.NewServeMux()
	mux.HandleFunc(messagebus.TypeLibraryScan, libraryScanConsumer.ProcessTask)
	mux.HandleFunc(messagebus.TypeCollectionScan, collectionScanConsumer.ProcessTask)
	mux.HandleFunc(messagebus.TypeImageProcessing, imageProcessingConsumer.ProcessTask)
	mux.HandleFunc(messagebus.TypeThumbnailGeneration, generator.ProcessThumbnailTask)
	mux.HandleFunc(messagebus.TypeCacheGeneration, generator.ProcessCacheTask)
	mux.HandleFunc(messagebus.TypeBulkOperation, bulkConsumer.ProcessTask)

	recovery := dlqrecovery.NewService(bus.Inspector(), bus.Client())
	monitor := jobmonitor.New(jobs)

	if err := bus.Start(mux); err != nil {
		log.Fatalf("Failed to start worker server: %v", err)
	}

	go func() {
		log.Println("dlqrecovery: starting startup drain")
		if err := recovery.Drain(ctx); err != nil && err != context.Canceled {
			log.Printf("dlqrecovery: drain stopped with error: %v", err)
		}
	}()

	go func() {
		if err := monitor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("jobmonitor: stopped with error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","worker":"running"}`)
	})

	healthServer := &http.Server{
		Addr:    cfg.HealthAddr,
		Handler: healthMux,
	}

	go func() {
		log.Printf("Health check server starting on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health check server error: %v", err)
		}
	}()

	log.Println("Worker started, waiting for jobs...")

	<-sigChan
	log.Println("Shutdown signal received, stopping worker...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Health server shutdown error: %v", err)
	}

	bus.Stop()

	time.Sleep(5 * time.Second)

	log.Println("Worker stopped")
}
