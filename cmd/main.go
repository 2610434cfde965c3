package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/voxlate/voxlate/internal/archive"
	"github.com/voxlate/voxlate/internal/cleanup"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/httpapi"
	"github.com/voxlate/voxlate/internal/jobs"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/resolver"
	"github.com/voxlate/voxlate/internal/service"
	"github.com/voxlate/voxlate/internal/stt"
	"github.com/voxlate/voxlate/internal/translate"
	"github.com/voxlate/voxlate/internal/tts"
	"github.com/voxlate/voxlate/pkg/file"
	"github.com/voxlate/voxlate/pkg/log"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	if err := file.EnsureDir(cfg.Media.DubbedDir()); err != nil {
		log.Fatal("Failed to create media directory: %v", err)
	}
	registry := jobs.NewRegistry(cfg.Media.DubbedDir())

	translator, err := translate.NewLLMTranslator(cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create translator: %v", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		cfg.Pipeline,
		registry,
		resolver.NewYtDlp(),
		stt.NewFactory(cfg.STT),
		resolver.NewHTTPOpener(),
		translator,
		tts.NewClient(cfg.TTS),
	)
	if cfg.Media.OutputSampleRate > 0 {
		orchestrator.WithOutputProcessor(media.NewFfmpeg(cfg.Media.OutputSampleRate))
	}

	var store *archive.Store
	if cfg.Archive.DBPath != "" {
		store, err = archive.NewStore(cfg.Archive.DBPath)
		if err != nil {
			log.Fatal("Failed to open segment archive: %v", err)
		}
		defer store.Close()
		orchestrator.WithArchiver(store)
	}

	svc := service.New(cfg, registry, orchestrator, translator)

	scheduler := cron.New()
	janitor := cleanup.NewJanitor(registry, scheduler, cfg.Cleanup.CronExpr)
	if err := janitor.Schedule(); err != nil {
		log.Fatal("Failed to schedule cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := httpapi.NewServer(svc)

	go func() {
		log.Info("Listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Error("HTTP server stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error: %v", err)
	}
}
