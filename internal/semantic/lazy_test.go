package semantic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

type fakeBackend struct {
	closed atomic.Int32
}

func (f *fakeBackend) Detect(_ context.Context, text string) ([]privacy.Match, error) {
	return []privacy.Match{{Type: privacy.TypePerson, Value: text, StartIndex: 0, EndIndex: len(text)}}, nil
}

func (f *fakeBackend) Close() error {
	f.closed.Add(1)
	return nil
}

func TestLazy_SharesOneLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		calls.Add(1)
		onProgress(Progress{Stage: StageModel, Loaded: 0, Total: 1})
		<-release
		onProgress(Progress{Stage: StageReady, Loaded: 1, Total: 1, Done: true})
		return &fakeBackend{}, nil
	}, logger.Nop())

	const callers = 8
	var wg sync.WaitGroup
	done := make([]atomic.Bool, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = lazy.Preload(context.Background(), func(p Progress) {
				if p.Done {
					done[i].Store(true)
				}
			})
		}(i)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, lazy.Loaded())
	for i := 0; i < callers; i++ {
		assert.NoError(t, errs[i])
		assert.True(t, done[i].Load(), "caller %d saw no completion", i)
	}
}

func TestLazy_FailureNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("download failed")

	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return &fakeBackend{}, nil
	}, logger.Nop())

	_, err := lazy.Detect(context.Background(), "Ada")
	require.ErrorIs(t, err, boom)
	assert.False(t, lazy.Loaded())

	matches, err := lazy.Detect(context.Background(), "Ada")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLazy_NilBackendRejected(t *testing.T) {
	var calls atomic.Int32

	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		if calls.Add(1) == 1 {
			return nil, nil
		}
		return &fakeBackend{}, nil
	}, logger.Nop())

	_, err := lazy.Detect(context.Background(), "Ada")
	require.ErrorIs(t, err, ErrModelNotLoaded)
	assert.False(t, lazy.Loaded())

	matches, err := lazy.Detect(context.Background(), "Ada")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestLazy_DisposeIdempotent(t *testing.T) {
	var calls atomic.Int32
	backends := make(chan *fakeBackend, 2)

	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		calls.Add(1)
		b := &fakeBackend{}
		backends <- b
		return b, nil
	}, logger.Nop())

	require.NoError(t, lazy.Preload(context.Background(), nil))
	first := <-backends

	require.NoError(t, lazy.Dispose())
	require.NoError(t, lazy.Dispose())
	assert.Equal(t, int32(1), first.closed.Load())
	assert.False(t, lazy.Loaded())

	// Next use loads again
	_, err := lazy.Detect(context.Background(), "Ada")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLazy_DisposeBeforeLoad(t *testing.T) {
	lazy := NewLazy("fake", HeuristicLoader, logger.Nop())
	assert.NoError(t, lazy.Dispose())
}

func TestLazy_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		close(started)
		<-release
		return &fakeBackend{}, nil
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- lazy.Preload(ctx, nil)
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	// The shared load keeps going for later callers
	close(release)
	require.NoError(t, lazy.Preload(context.Background(), nil))
	assert.True(t, lazy.Loaded())
}

func TestLazy_BlankTextSkipsLoad(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy("fake", func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		calls.Add(1)
		return &fakeBackend{}, nil
	}, logger.Nop())

	matches, err := lazy.Detect(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, int32(0), calls.Load())
}
