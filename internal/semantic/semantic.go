// Package semantic provides optional entity recognition for names,
// organisations and locations that the structural patterns cannot see.
// Backends are loaded lazily and shared by every caller of a Source.
package semantic

import (
	"context"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

// Progress stages reported while a backend loads
const (
	StageVocab = "vocab"
	StageModel = "model"
	StageReady = "ready"
)

// Source is an asynchronous entity detector. Matches carry byte offsets into
// the text passed to Detect.
type Source interface {
	// Detect returns entity matches, loading the backend on first use.
	Detect(ctx context.Context, text string) ([]privacy.Match, error)
	// Preload loads the backend ahead of time, reporting progress.
	Preload(ctx context.Context, onProgress ProgressFunc) error
	// Dispose releases the loaded backend. Calling it again is a no-op.
	Dispose() error
}

// Backend is a loaded detector
type Backend interface {
	Detect(ctx context.Context, text string) ([]privacy.Match, error)
	Close() error
}

// Progress describes how far a backend load has come
type Progress struct {
	Stage  string `json:"stage"`
	Loaded int64  `json:"loaded"`
	Total  int64  `json:"total"`
	Done   bool   `json:"done"`
}

// ProgressFunc receives load progress
type ProgressFunc func(Progress)

// Loader builds a backend. It must report progress through onProgress, which is never nil.
type Loader func(ctx context.Context, onProgress ProgressFunc) (Backend, error)
