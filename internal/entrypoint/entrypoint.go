// Package entrypoint wires the service together and runs it.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skelutten/studymaster-pwa-sub001/internal/audit"
	"github.com/skelutten/studymaster-pwa-sub001/internal/config"
	"github.com/skelutten/studymaster-pwa-sub001/internal/database"
	auditrepo "github.com/skelutten/studymaster-pwa-sub001/internal/database/audit"
	http_controllers "github.com/skelutten/studymaster-pwa-sub001/internal/http"
	"github.com/skelutten/studymaster-pwa-sub001/internal/scheduler"
	"github.com/skelutten/studymaster-pwa-sub001/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until interrupted, then shuts it down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop the task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run initializes all components and serves until interrupted.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting StudyMaster import service v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	auditRepository := auditrepo.NewRepository(db.DB)
	auditService := audit.NewService(auditRepository)

	var taskClient *tasks.Client
	var cleanupScheduler *scheduler.AuditCleanupScheduler
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer taskClient.Close()

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditRepository))
		go taskClient.Start(context.Background())

		cleanupScheduler = scheduler.NewAuditCleanupScheduler(
			taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays)
		if err := cleanupScheduler.Start(context.Background()); err != nil {
			log.Printf("WARNING: audit cleanup scheduler not started: %v", err)
		}
	} else {
		log.Printf("Task queue disabled; audit retention cleanup will not run")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		AuditService:     auditService,
		DefaultChunkSize: cfg.Import.ChunkSize,
		MaxUploadBytes:   cfg.Import.MaxUploadSizeMB * 1024 * 1024,
	})

	Serve(router, cfg, func(ctx context.Context) {
		if cleanupScheduler != nil {
			cleanupScheduler.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
	})
}
