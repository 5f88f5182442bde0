package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/prompts"
	"github.com/lokutor-ai/payphoned/internal/providersetup"
	"github.com/lokutor-ai/payphoned/internal/server"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}

	if settings.PromptsOverlayPath != "" {
		if err := prompts.LoadOverlay(settings.PromptsOverlayPath); err != nil {
			log.Fatalf("Error: failed to load prompts overlay %s: %v", settings.PromptsOverlayPath, err)
		}
	}

	logger := telemetry.NewStdLogger()
	metrics := telemetry.New()

	newProviders, err := providersetup.Build(settings)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	vadPool := vad.NewPool(settings.VAD.PoolSize)

	srv := server.New(settings, vadPool, newProviders, logger, metrics)

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		logger.Info("server: metrics listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("server: metrics endpoint failed", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server: exited with error", "err", err)
		os.Exit(1)
	}
}
