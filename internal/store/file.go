package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

// fileRecord is the on-disk document for one key
type fileRecord struct {
	Key       string          `json:"key"`
	Mapping   privacy.Mapping `json:"mapping"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// File stores one JSON document per key in a directory
type File struct {
	fs     afero.Fs
	dir    string
	ttl    time.Duration
	logger *logger.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewFile creates a directory-backed store. A nil fs uses the OS filesystem.
func NewFile(fs afero.Fs, cfg config.StoreConfig, log *logger.Logger) (*File, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(cfg.File.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create mapping directory: %w", err)
	}

	log.Info("File mapping store initialized",
		zap.String("dir", cfg.File.Dir),
		zap.Duration("ttl", cfg.TTL),
	)

	return &File{
		fs:     fs,
		dir:    cfg.File.Dir,
		ttl:    cfg.TTL,
		logger: log,
		now:    time.Now,
	}, nil
}

// Get reads each key's document; expired documents are deleted
func (f *File) Get(_ context.Context, keys ...string) (map[string]privacy.Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]privacy.Mapping, len(keys))
	for _, key := range keys {
		path := f.path(key)
		data, err := afero.ReadFile(f.fs, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping: %w", err)
		}

		var record fileRecord
		if err := json.Unmarshal(data, &record); err != nil {
			f.logger.Error("Failed to unmarshal stored mapping", zap.Error(err), zap.String("path", path))
			continue
		}
		if record.ExpiresAt != nil && f.now().After(*record.ExpiresAt) {
			_ = f.fs.Remove(path)
			continue
		}
		out[key] = record.Mapping
	}
	return out, nil
}

// Set writes each document to a temp file and renames it into place
func (f *File) Set(_ context.Context, items map[string]privacy.Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, mapping := range items {
		record := fileRecord{Key: key, Mapping: mapping}
		if f.ttl > 0 {
			expires := f.now().Add(f.ttl)
			record.ExpiresAt = &expires
		}

		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal mapping: %w", err)
		}

		path := f.path(key)
		tmp := path + ".tmp"
		if err := afero.WriteFile(f.fs, tmp, data, 0o600); err != nil {
			return fmt.Errorf("failed to write mapping: %w", err)
		}
		if err := f.fs.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to replace mapping: %w", err)
		}
	}
	return nil
}

// Remove deletes documents; missing keys are ignored
func (f *File) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, key := range keys {
		if err := f.fs.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove mapping: %w", err)
		}
	}
	return nil
}

// Close is a no-op
func (f *File) Close() error {
	return nil
}

// path encodes the key so any key is a safe file name
func (f *File) path(key string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}
