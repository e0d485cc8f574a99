package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/app"
	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/proxy"
	"github.com/raaihank/aegis-shield/internal/security"
	"github.com/raaihank/aegis-shield/internal/semantic"
	"github.com/raaihank/aegis-shield/internal/shield"
	"github.com/raaihank/aegis-shield/internal/websocket"
)

var (
	version = "0.2.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the health endpoint at this base URL (e.g. http://localhost:8080) and exit")
		noWatch     = flag.Bool("no-watch", false, "Do not reload the configuration file on change")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Aegis Shield %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Aegis Shield",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.String("config", loader.ConfigFile()),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	var hub *websocket.Hub
	var events shield.Events
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(cfg.WebSocket, m, log)
		events = hub
		go hub.Run(ctx)
	}

	services, err := app.Initialize(ctx, cfg, app.Options{Metrics: m, Events: events}, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	limiter := security.NewRateLimiter(cfg.Security.RateLimit)
	go limiter.Run(ctx)

	server, err := proxy.New(cfg, proxy.Deps{
		Shield:  services.Shield,
		Hub:     hub,
		Limiter: limiter,
		Metrics: m,
	}, log)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if !*noWatch && loader.ConfigFile() != "" {
		loader.Watch(func(next *config.Config) {
			if err := services.Shield.Reload(next); err != nil {
				log.Error("Configuration reload rejected", zap.Error(err))
				return
			}
			log.Info("Configuration reloaded", zap.Strings("detectors", next.Privacy.Detectors))
		}, func(err error) {
			log.Error("Configuration reload failed", zap.Error(err))
		})
	}

	if services.Shield.SemanticEnabled() && cfg.Semantic.PreloadOnStart {
		go func() {
			err := services.Shield.PreloadSemantic(ctx, func(p semantic.Progress) {
				log.Debug("Semantic preload progress", zap.String("stage", p.Stage), zap.Int64("loaded", p.Loaded), zap.Int64("total", p.Total))
			})
			if err != nil {
				log.Warn("Semantic preload failed, it will be retried on first use", zap.Error(err))
				return
			}
			log.Info("Semantic source ready")
		}()
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against a running server
func performHealthCheck(baseURL string) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
