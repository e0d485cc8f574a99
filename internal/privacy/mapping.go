package privacy

import "strings"

// ScrubWithMapping sanitizes text, detects structural PII, merges any extra
// matches (offsets must refer to the sanitized text) and redacts. The mapping
// holds the first value seen per placeholder. Scrubbed text and mapping are
// built from the same final match set.
func ScrubWithMapping(text string, extra []Match) ScrubResult {
	return scrubWith(Detect, text, extra)
}

func scrubWith(detect func(string) []Match, text string, extra []Match) ScrubResult {
	text = Sanitize(text)

	final := Resolve(detect(text))
	if len(extra) > 0 {
		final = Merge(final, Resolve(fitting(text, extra)))
	}

	// Fill values for external matches that only carried offsets
	for i := range final {
		final[i].Value = text[final[i].StartIndex:final[i].EndIndex]
	}

	mapping := make(Mapping)
	for _, m := range final {
		placeholder := Placeholder(m.Type)
		if _, seen := mapping[placeholder]; !seen {
			mapping[placeholder] = m.Value
		}
	}

	return ScrubResult{
		Scrubbed: redact(text, final),
		Mapping:  mapping,
		Matches:  final,
	}
}

// Restore replaces every literal occurrence of each placeholder with its
// value. Placeholders are applied in sorted order, so a value that itself
// contains a later placeholder token is substituted again.
func Restore(text string, mapping Mapping) (string, error) {
	if len(mapping) == 0 {
		return text, ErrNothingToRestore
	}

	for _, placeholder := range mapping.Placeholders() {
		if placeholder == "" {
			continue
		}
		text = strings.ReplaceAll(text, placeholder, mapping[placeholder])
	}
	return text, nil
}
