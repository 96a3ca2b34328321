package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/At4lian/editra/internal/api"
	"github.com/At4lian/editra/internal/cache"
	"github.com/At4lian/editra/internal/clickup"
	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/email"
	"github.com/At4lian/editra/internal/logger"
	"github.com/At4lian/editra/internal/pdf"
	"github.com/At4lian/editra/internal/services"
	"github.com/At4lian/editra/internal/storage"
	"github.com/At4lian/editra/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api' (webhook server), 'bg' (email worker), 'all' (default)")

func main() {
	flag.Parse()

	if err := logger.Setup(logger.LogConfig{
		Level:  getenvDefault("LOG_LEVEL", "info"),
		Format: getenvDefault("LOG_FORMAT", "console"),
		Output: "stdout",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Error().Err(err).Msg("Error disconnecting from Redis")
		}
	}()

	clickupClient := clickup.NewClient(cfg)
	renderer := pdf.NewRenderer(cfg)
	batchMarker := services.NewRedisBatchMarker(redisClient, cfg.BatchMarkerTTL)
	taskClient := tasks.NewClient(redisClient)

	archive, err := storage.NewS3Archive(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 archive")
	}
	if archive == nil {
		log.Info().Msg("No S3 bucket configured, PDF archive disabled")
	}

	invoiceSvc := services.NewInvoiceService(cfg, clickupClient, renderer, batchMarker, taskClient, archive)

	// Primary sender is Resend when configured; LOG_EMAILS additionally
	// captures every message to a file.
	compositeSender := email.NewCompositeSender(email.NewResendSender(cfg))
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileSender(logEmailsPath)
		if err != nil {
			log.Warn().Err(err).Str("path", logEmailsPath).Msg("Failed to initialize file email sender, proceeding without it")
		} else {
			compositeSender.AddSender(fileSender)
		}
	}

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender)

	var wg sync.WaitGroup
	var apiSrv *http.Server
	var taskSrv *asynq.Server

	log.Info().Str("mode", cfg.RunMode).Msg("Starting")

	apiMode := func() {
		router := api.SetupRouter(cfg, invoiceSvc, clickupClient)
		apiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("port", cfg.ApiPort).Msg("Webhook API listening")
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("API server error")
			}
		}()
	}

	bgMode := func() {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor)
		taskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("Background worker starting")
			if err := taskSrv.Run(mux); err != nil {
				log.Fatal().Err(err).Msg("Background worker error")
			}
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatal().Str("mode", cfg.RunMode).Msg("Invalid run mode")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if apiSrv != nil {
		if err := apiSrv.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	log.Info().Msg("Stopped")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
