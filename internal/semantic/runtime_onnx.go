//go:build onnx
// +build onnx

package semantic

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/logger"
)

// onnxRunner runs a token-classification model through ONNX Runtime
type onnxRunner struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	logger     *logger.Logger
	mu         sync.Mutex
}

// newRunner opens the model. Requires build tag 'onnx'.
func newRunner(log *logger.Logger, modelPath string) (Runner, error) {
	// Allow user to provide shared library path via environment variable.
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	} else if shlib := os.Getenv("ORT_SHLIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: onnx runtime init: %v", ErrModelNotLoaded, err)
		}
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: inspect %s: %v", ErrModelNotLoaded, modelPath, err)
	}
	if len(outputsInfo) == 0 {
		return nil, fmt.Errorf("%w: model %s reports no outputs", ErrModelNotLoaded, modelPath)
	}

	inputNames := make([]string, 0, len(inputsInfo))
	for _, info := range inputsInfo {
		inputNames = append(inputNames, info.Name)
	}
	outputName := outputsInfo[0].Name

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrModelNotLoaded, err)
	}

	log.Info("ONNX Runtime NER model ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName),
	)
	return &onnxRunner{session: session, inputNames: inputNames, logger: log}, nil
}

// Run feeds a single sequence and returns logits of shape [tokens, labels]
func (r *onnxRunner) Run(ctx context.Context, input *TokenizedInput) ([]float32, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, 0, ErrModelNotLoaded
	}

	seqLen := len(input.InputIDs)
	shape := ort.NewShape(1, int64(seqLen))

	inputs := make([]ort.Value, 0, len(r.inputNames))
	for _, name := range r.inputNames {
		data := input.InputIDs
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "mask"):
			data = input.AttentionMask
		case strings.Contains(lower, "type") || strings.Contains(lower, "segment"):
			data = input.TokenTypeIDs
		}

		tensor, err := ort.NewTensor[int64](shape, data)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		defer tensor.Destroy()
		inputs = append(inputs, tensor)
	}

	// One output; let ORT allocate it
	outputs := make([]ort.Value, 1)
	if err := r.session.Run(inputs, outputs); err != nil {
		return nil, 0, fmt.Errorf("onnx run failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, 0, fmt.Errorf("onnx returned no outputs")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, 0, fmt.Errorf("unexpected output type (want float32 tensor)")
	}

	outShape := out.GetShape()
	if len(outShape) != 3 || outShape[0] != 1 || int(outShape[1]) != seqLen {
		return nil, 0, fmt.Errorf("unsupported output shape %v for %d tokens", outShape, seqLen)
	}
	numLabels := int(outShape[2])

	logits := make([]float32, seqLen*numLabels)
	copy(logits, out.GetData())
	return logits, numLabels, nil
}

// Close releases session and environment resources
func (r *onnxRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	return ort.DestroyEnvironment()
}
