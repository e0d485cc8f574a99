// Package app wires the configured services together for the commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/semantic"
	"github.com/raaihank/aegis-shield/internal/shield"
	"github.com/raaihank/aegis-shield/internal/store"
)

// Services holds the initialized services
type Services struct {
	Shield  *shield.Service
	Metrics *metrics.Metrics
}

// Close releases the semantic backend and the store
func (s *Services) Close() error {
	if s.Shield == nil {
		return nil
	}
	return s.Shield.Close()
}

// NewLogger builds the logger described by cfg
func NewLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
	}
	if cfg.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.File.Enabled,
			Path:    cfg.File.Path,
		}
	}
	return logger.New(loggerConfig)
}

// Options are optional collaborators shared with other components
type Options struct {
	Metrics *metrics.Metrics
	Events  shield.Events
}

// Initialize connects the store, creates the semantic source and the shield
// service.
func Initialize(ctx context.Context, cfg *config.Config, opts Options, log *logger.Logger) (*Services, error) {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	log.Info("Initializing mapping store...", zap.String("type", cfg.Store.Type))
	st, err := store.New(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	source, err := semantic.New(cfg.Semantic, log.WithComponent("semantic"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize semantic source: %w", err)
	}

	svc, err := shield.New(cfg, shield.Options{
		Semantic: source,
		Store:    st,
		Metrics:  m,
		Events:   opts.Events,
	}, log)
	if err != nil {
		if source != nil {
			source.Dispose()
		}
		st.Close()
		return nil, fmt.Errorf("failed to initialize shield service: %w", err)
	}

	return &Services{Shield: svc, Metrics: m}, nil
}
