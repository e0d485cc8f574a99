package semantic

// Error represents a semantic detection error
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *Error) Error() string {
	return e.Message
}

// Common error types
var (
	ErrModelNotLoaded     = &Error{Type: "model_not_loaded", Message: "semantic model not loaded", Code: 2001}
	ErrInferenceFailed    = &Error{Type: "inference_failed", Message: "semantic inference failed", Code: 2002}
	ErrTokenizationFailed = &Error{Type: "tokenization_failed", Message: "tokenization failed", Code: 2003}
	ErrBackendUnavailable = &Error{Type: "backend_unavailable", Message: "onnx runtime support not compiled in (build with -tags onnx)", Code: 2004}
	ErrDisposed           = &Error{Type: "disposed", Message: "semantic source disposed while loading", Code: 2005}
)
