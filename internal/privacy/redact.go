package privacy

import "strings"

// Placeholder returns the token substituted for a category. Categories
// without a canonical token get "[" + upper-cased type + "]".
func Placeholder(t Type) string {
	if p, ok := placeholders[t]; ok {
		return p
	}
	return "[" + strings.ToUpper(string(t)) + "]"
}

// Redact replaces every match span in text with its placeholder. When matches
// is nil the text is sanitized and scanned with the full pattern library.
// Overlapping matches are resolved first; matches that do not fit text are skipped.
func Redact(text string, matches []Match) string {
	if matches == nil {
		text = Sanitize(text)
		matches = Detect(text)
	}
	return redact(text, matches)
}

// ScrubText is the irreversible one-shot form: sanitize, detect, redact
func ScrubText(text string) string {
	return Redact(Sanitize(text), nil)
}

func redact(text string, matches []Match) string {
	resolved := Resolve(fitting(text, matches))
	if len(resolved) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	cursor := 0
	for _, m := range resolved {
		b.WriteString(text[cursor:m.StartIndex])
		b.WriteString(Placeholder(m.Type))
		cursor = m.EndIndex
	}
	b.WriteString(text[cursor:])

	return b.String()
}

// fitting drops matches whose span lies outside text or whose recorded value
// disagrees with the text, which happens when offsets come from another string.
func fitting(text string, matches []Match) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.StartIndex < 0 || m.StartIndex >= m.EndIndex || m.EndIndex > len(text) {
			continue
		}
		if m.Value != "" && text[m.StartIndex:m.EndIndex] != m.Value {
			continue
		}
		out = append(out, m)
	}
	return out
}
