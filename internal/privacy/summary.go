package privacy

import "strings"

// Summary counts matches per type. With nil matches the sanitized text is
// scanned; blank text reports no PII.
func Summary(text string, matches []Match) map[Type]int {
	summary := make(map[Type]int)
	if matches == nil {
		if isBlank(text) {
			return summary
		}
		matches = Detect(Sanitize(text))
	}

	for _, m := range matches {
		summary[m.Type]++
	}
	return summary
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
