//go:build !onnx
// +build !onnx

package semantic

import "github.com/raaihank/aegis-shield/internal/logger"

// Stub implementation used when the 'onnx' build tag is not set.
func newRunner(_ *logger.Logger, _ string) (Runner, error) {
	return nil, ErrBackendUnavailable
}
