// gen3dapi/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gen3dapi/api"
	"gen3dapi/config"
	"gen3dapi/job"
	"gen3dapi/pipeline"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	for _, dir := range []string{cfg.UploadDir(), cfg.OutputDir(), cfg.JobsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}

	// 2. Pick the registry backend
	var registry job.Registry
	if cfg.RegistryPath != "" {
		sqlReg, err := job.NewSQLiteRegistry(cfg.RegistryPath)
		if err != nil {
			log.Fatalf("Failed to open job registry: %v", err)
		}
		defer sqlReg.Close()
		registry = sqlReg
		log.Printf("Using sqlite job registry at %s", cfg.RegistryPath)
	} else {
		registry = job.NewMemoryRegistry()
	}

	// 3. Build the pipeline for the configured engine
	def, err := pipeline.ForEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	executor := pipeline.NewExecutor(cfg, def, registry, &pipeline.ExecRunner{})

	// 4. Job manager and router
	manager := job.NewManager(cfg, registry, executor)
	router := api.SetupRouter(manager, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	go func() {
		log.Printf("Server starting on port %s (engine=%s)", cfg.Port, cfg.Engine)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
