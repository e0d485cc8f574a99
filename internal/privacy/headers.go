package privacy

import (
	"net/http"
	"strings"
)

const redactedHeader = "[REDACTED]"

// ScrubHeaders returns a single-valued copy of headers for logs and events.
// Sensitive headers are replaced and the remaining values are redacted for PII.
func (d *Detector) ScrubHeaders(headers http.Header) map[string]string {
	safe := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if d.config.HeaderScrubbing.Enabled && d.isSensitiveHeader(key) {
			safe[key] = redactedHeader
			continue
		}
		safe[key] = d.Redact(values[0], nil)
	}
	return safe
}

// isSensitiveHeader checks the configured header names as case-insensitive substrings
func (d *Detector) isSensitiveHeader(header string) bool {
	headerLower := strings.ToLower(header)
	for _, sensitive := range d.config.HeaderScrubbing.Headers {
		if strings.Contains(headerLower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}
