// Package store keeps scrub mappings between a scrub and the matching restore.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

// Store is an asynchronous key-value store of mappings. Get omits keys
// that are missing or expired.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]privacy.Mapping, error)
	Set(ctx context.Context, items map[string]privacy.Mapping) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// New creates the configured store
func New(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (Store, error) {
	log = log.WithComponent("store")

	switch cfg.Type {
	case "", "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		r, err := NewRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "postgres":
		p, err := NewPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "file":
		f, err := NewFile(nil, cfg, log)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// BatchKey is the key a batch record's mapping is stored under
func BatchKey(id string) string {
	return "batch:" + id
}

func cloneMapping(m privacy.Mapping) privacy.Mapping {
	out := make(privacy.Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// maskURL hides the password in a connection URL for logs
func maskURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
