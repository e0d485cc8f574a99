package semantic

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
)

// New creates the configured source. A disabled configuration yields a nil source.
func New(cfg config.SemanticConfig, log *logger.Logger) (Source, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case "heuristic":
		log.Info("Created heuristic semantic source")
		return NewLazy("heuristic", HeuristicLoader, log), nil
	case "onnx":
		log.Info("Created onnx semantic source",
			zap.String("model", cfg.ModelPath),
			zap.String("vocab", cfg.VocabPath),
		)
		return NewLazy("onnx", NERLoader(afero.NewOsFs(), cfg, log), log), nil
	default:
		return nil, fmt.Errorf("unknown semantic source type: %s", cfg.Type)
	}
}

// NERLoader loads the vocab from fs and the model through ONNX Runtime
func NERLoader(fs afero.Fs, cfg config.SemanticConfig, log *logger.Logger) Loader {
	return func(ctx context.Context, onProgress ProgressFunc) (Backend, error) {
		onProgress(Progress{Stage: StageVocab, Loaded: 0, Total: 2})

		f, err := fs.Open(cfg.VocabPath)
		if err != nil {
			return nil, fmt.Errorf("%w: open vocab: %v", ErrModelNotLoaded, err)
		}
		vocab, err := LoadVocab(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
		}

		tokenizer, err := NewTokenizer(vocab, cfg.LowerCase, cfg.MaxLength)
		if err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		onProgress(Progress{Stage: StageModel, Loaded: 1, Total: 2})

		runner, err := newRunner(log, cfg.ModelPath)
		if err != nil {
			return nil, err
		}

		onProgress(Progress{Stage: StageReady, Loaded: 2, Total: 2, Done: true})
		return NewNER(tokenizer, runner, cfg.Labels, cfg.MinScore), nil
	}
}
