package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/security"
	"github.com/raaihank/aegis-shield/internal/shield"
	"github.com/raaihank/aegis-shield/internal/websocket"
)

// Version is reported by /info
const Version = "0.2.0"

// Deps are the collaborators the server routes to. Hub and Limiter may be nil.
type Deps struct {
	Shield  *shield.Service
	Hub     *websocket.Hub
	Limiter *security.RateLimiter
	Metrics *metrics.Metrics
}

// Server represents the HTTP API and LLM proxy
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	shield  *shield.Service
	hub     *websocket.Hub
	limiter *security.RateLimiter
	metrics *metrics.Metrics
	router  *mux.Router
	server  *http.Server
	proxies map[string]*httputil.ReverseProxy
	started time.Time
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, log *logger.Logger) (*Server, error) {
	if deps.Shield == nil {
		return nil, fmt.Errorf("shield service is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("proxy"),
		shield:  deps.Shield,
		hub:     deps.Hub,
		limiter: deps.Limiter,
		metrics: deps.Metrics,
		router:  mux.NewRouter(),
		proxies: make(map[string]*httputil.ReverseProxy),
		started: time.Now(),
	}

	for provider, upstream := range map[string]string{
		"openai":    cfg.Upstream.OpenAI,
		"anthropic": cfg.Upstream.Anthropic,
		"ollama":    cfg.Upstream.Ollama,
	} {
		if upstream == "" {
			continue
		}
		rp, err := s.newReverseProxy(provider, upstream)
		if err != nil {
			return nil, err
		}
		s.proxies[provider] = rp
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	if s.hub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/scrub", s.handleScrub).Methods(http.MethodPost)
	api.HandleFunc("/restore", s.handleRestore).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodPost)
	api.HandleFunc("/redact", s.handleRedact).Methods(http.MethodPost)
	api.HandleFunc("/mappings/{session}", s.handleForget).Methods(http.MethodDelete)
	api.HandleFunc("/semantic/preload", s.handlePreload).Methods(http.MethodPost)

	for provider := range s.proxies {
		sub := s.router.PathPrefix("/" + provider).Subrouter()
		sub.Use(s.rateLimitMiddleware)
		sub.PathPrefix("/").Handler(s.providerHandler(provider))
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting Aegis Shield server",
		zap.Int("port", s.config.Server.Port),
		zap.String("upstream_openai", s.config.Upstream.OpenAI),
		zap.String("upstream_anthropic", s.config.Upstream.Anthropic),
		zap.String("upstream_ollama", s.config.Upstream.Ollama),
		zap.Bool("semantic", s.shield.SemanticEnabled()),
	)
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Aegis Shield server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	providers := make([]string, 0, len(s.proxies))
	for p := range s.proxies {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "aegis-shield",
		"version":           Version,
		"privacy_enabled":   s.config.Privacy.Enabled,
		"detectors":         s.shield.Detector().EnabledTypes(),
		"semantic_enabled":  s.shield.SemanticEnabled(),
		"restore_responses": s.config.Privacy.RestoreResponses,
		"store":             s.config.Store.Type,
		"providers":         providers,
		"uptime_seconds":    int64(time.Since(s.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
