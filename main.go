package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	blobstore "fileflow/blobStore"
	"fileflow/config"
	"fileflow/converter"
	"fileflow/links"
	"fileflow/logger"
	"fileflow/models"
	"fileflow/pipeline"
	"fileflow/records"
	"fileflow/registry"
	"fileflow/routes"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := logger.Init(cfg.LogFile, true); err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer logger.Close()
	}
	logger.Info("Starting fileflow server initialization")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	// Job registry
	logger.Debug("Opening job registry database")
	jobsDB, err := registry.OpenPebbleStore(cfg.JobsDBPath)
	if err != nil {
		logger.Fatalf("Failed to open job registry: %v", err)
	}
	defer jobsDB.Close()
	reg, err := registry.New(jobsDB)
	if err != nil {
		logger.Fatalf("Failed to load job registry: %v", err)
	}
	logger.Info("Job registry initialized successfully")

	// Blob store
	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize %s blob store: %v", cfg.BlobBackend, err)
	}
	if closer, ok := blobs.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Infof("Blob store '%s' initialized successfully", blobs.Name())

	// Handlers
	table, err := converter.DefaultTable(converter.NewCollaborators(cfg))
	if err != nil {
		logger.Fatalf("Failed to register conversion handlers: %v", err)
	}
	logger.Infof("Registered conversion types: %v", table.Types())

	// Record sinks
	recordStore, err := records.OpenPebbleStore(cfg.RecordsDBPath)
	if err != nil {
		logger.Fatalf("Failed to open records store: %v", err)
	}
	sinks := []records.Sink{recordStore}
	if cfg.DatabaseURL != "" {
		pg, err := records.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Errorf("Postgres record sink disabled: %v", err)
		} else {
			sinks = append(sinks, pg)
			logger.Info("Postgres record sink enabled")
		}
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warnf("Redis at %s not reachable yet: %v", cfg.RedisAddr, err)
		}
		cancel()
		sinks = append(sinks, records.NewRedisSink(client, cfg.ApplyPrefix))
		logger.Infof("Redis record sink enabled at %s", cfg.RedisAddr)
	}
	dispatcher := records.NewDispatcher(256, sinks...)

	signer, err := links.NewSigner(cfg.LinkSecret, cfg.LinkTTL, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatalf("Invalid download link configuration: %v", err)
	}
	if !signer.Enabled() {
		logger.Warn("FILEFLOW_LINK_SECRET not set, download links are unsigned")
	}

	orch := pipeline.New(blobs, reg, table, dispatcher, pipeline.Options{MaxUploadBytes: cfg.MaxUploadBytes})
	if stale := orch.Jobs(models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting); len(stale) > 0 {
		logger.Warnf("%d jobs were interrupted by the last shutdown; list them with GET /api/jobs?state=executing", len(stale))
	}

	pool := pipeline.NewPool(orch, cfg.Workers*16)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	pool.Start(workerCtx, cfg.Workers)

	logger.Info("Starting janitor routine")
	janitorDone := startJanitor(ctx, cfg, orch, recordStore)

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: routes.NewRouter(&routes.Server{
			Orchestrator: orch,
			Pool:         pool,
			Links:        signer,
			Records:      recordStore,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("fileflow server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Errorf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}

	// queued jobs are drained; give up on them when the timeout hits
	drained := make(chan struct{})
	go func() {
		pool.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached, leaving queued jobs in created state")
		stopWorkers()
		<-drained
	}

	// the janitor uses the registry and the record store, so it exits before either closes
	stop()
	<-janitorDone
	dispatcher.Close()
	logger.Info("fileflow server stopped")
}

// startJanitor runs janitorRoutine until ctx is cancelled. The returned
// channel closes once the routine has returned.
func startJanitor(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator, recordStore *records.PebbleStore) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		janitorRoutine(ctx, cfg, orch, recordStore)
	}()
	return done
}

// janitorRoutine periodically expires outputs, stale uploads and old records.
func janitorRoutine(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator, recordStore *records.PebbleStore) {
	logger.Infof("Janitor started - will run every %v", cfg.JanitorInterval)
	ticker := time.NewTicker(cfg.JanitorInterval)
	defer ticker.Stop()

	policy := pipeline.SweepPolicy{
		OutputTTL:    cfg.OutputTTL,
		UploadTTL:    cfg.UploadTTL,
		JobRetention: cfg.RecordRetention,
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("Janitor stopped due to context cancellation")
			return
		case <-ticker.C:
			logger.Debug("Running scheduled cleanup")
			res := orch.Sweep(ctx, policy)
			logger.Infof("Cleanup removed %d outputs, %d uploads, %d jobs", res.Outputs, res.Uploads, res.Jobs)

			if cfg.RecordRetention > 0 {
				n, err := recordStore.CleanupOldRecords(cfg.RecordRetention)
				if err != nil {
					logger.Errorf("Failed to cleanup old records: %v", err)
				} else {
					logger.Debugf("Removed %d old conversion records", n)
				}
			}
		}
	}
}
