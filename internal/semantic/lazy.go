package semantic

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

const loadKey = "backend"

// Lazy is a Source that loads its backend on first use. Concurrent first
// callers share a single load and all of them receive its progress. A failed
// load is not remembered, so the next call tries again.
type Lazy struct {
	name string
	load Loader
	log  *logger.Logger

	group singleflight.Group

	mu        sync.Mutex
	backend   Backend
	gen       uint64
	listeners map[uint64]ProgressFunc
	nextID    uint64
	last      *Progress
}

// NewLazy wraps a loader
func NewLazy(name string, load Loader, log *logger.Logger) *Lazy {
	return &Lazy{
		name:      name,
		load:      load,
		log:       log.WithComponent("semantic"),
		listeners: make(map[uint64]ProgressFunc),
	}
}

// Name returns the backend name
func (l *Lazy) Name() string {
	return l.name
}

// Loaded reports whether a backend is ready
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend != nil
}

// Detect runs the backend over text, loading it first if needed
func (l *Lazy) Detect(ctx context.Context, text string) ([]privacy.Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	backend, err := l.acquire(ctx, nil)
	if err != nil {
		return nil, err
	}
	return backend.Detect(ctx, text)
}

// Preload loads the backend and reports progress to onProgress
func (l *Lazy) Preload(ctx context.Context, onProgress ProgressFunc) error {
	_, err := l.acquire(ctx, onProgress)
	return err
}

// Dispose closes the backend and returns the source to its unloaded state
func (l *Lazy) Dispose() error {
	l.mu.Lock()
	backend := l.backend
	l.backend = nil
	l.gen++
	l.last = nil
	l.mu.Unlock()

	l.group.Forget(loadKey)

	if backend == nil {
		return nil
	}
	l.log.Info("Semantic backend disposed", zap.String("backend", l.name))
	return backend.Close()
}

func (l *Lazy) acquire(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
	l.mu.Lock()
	if l.backend != nil {
		backend := l.backend
		l.mu.Unlock()
		if onProgress != nil {
			onProgress(Progress{Stage: StageReady, Loaded: 1, Total: 1, Done: true})
		}
		return backend, nil
	}

	var id uint64
	var replay *Progress
	if onProgress != nil {
		l.nextID++
		id = l.nextID
		l.listeners[id] = onProgress
		replay = l.last
	}
	gen := l.gen
	l.mu.Unlock()

	if id != 0 {
		defer l.unsubscribe(id)
	}
	if replay != nil {
		onProgress(*replay)
	}

	// The shared load must outlive any single caller
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(loadKey, func() (interface{}, error) {
		return l.doLoad(loadCtx, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		backend, ok := res.Val.(Backend)
		if !ok || backend == nil {
			return nil, ErrModelNotLoaded
		}
		return backend, nil
	}
}

func (l *Lazy) doLoad(ctx context.Context, gen uint64) (Backend, error) {
	l.mu.Lock()
	if l.backend != nil && l.gen == gen {
		backend := l.backend
		l.mu.Unlock()
		return backend, nil
	}
	l.mu.Unlock()

	start := time.Now()
	l.log.Info("Loading semantic backend", zap.String("backend", l.name))

	backend, err := l.load(ctx, l.broadcast)
	if err == nil && backend == nil {
		err = ErrModelNotLoaded
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = nil

	if err != nil {
		l.log.Warn("Semantic backend failed to load",
			zap.String("backend", l.name),
			zap.Error(err),
		)
		return nil, err
	}

	if l.gen != gen {
		_ = backend.Close()
		return nil, ErrDisposed
	}

	l.backend = backend
	l.log.Info("Semantic backend ready",
		zap.String("backend", l.name),
		zap.Duration("load_time", time.Since(start)),
	)
	return backend, nil
}

func (l *Lazy) broadcast(p Progress) {
	l.mu.Lock()
	l.last = &p
	listeners := make([]ProgressFunc, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}

func (l *Lazy) unsubscribe(id uint64) {
	l.mu.Lock()
	delete(l.listeners, id)
	l.mu.Unlock()
}
