package shield

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/raaihank/aegis-shield/internal/privacy"
)

// ScrubJSON scrubs every string value of a JSON document in req.Text and
// returns the re-encoded document. Object keys are left alone. The mapping
// spans the whole document, first value per placeholder. Text that is not
// valid JSON is scrubbed as plain text.
func (s *Service) ScrubJSON(ctx context.Context, req ScrubRequest) (*ScrubResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.Scrubs.WithLabelValues("empty").Inc()
		return nil, ErrEmptyText
	}

	dec := json.NewDecoder(strings.NewReader(req.Text))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil || dec.More() {
		return s.Scrub(ctx, req)
	}

	start := time.Now()
	cur := s.current.Load()
	w := &jsonWalker{
		svc:         s,
		ctx:         ctx,
		cur:         cur,
		useSemantic: req.UseSemantic,
		mapping:     make(privacy.Mapping),
	}
	doc = w.walk(doc)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}

	result := &ScrubResult{
		Scrubbed: strings.TrimSuffix(buf.String(), "\n"),
		Mapping:  w.mapping,
		Summary:  privacy.Summary("", w.matches),
		Matches:  w.matches,
	}
	if err := s.finish(ctx, cur, req, result, w.semErr, start); err != nil {
		return nil, err
	}
	return result, nil
}

type jsonWalker struct {
	svc         *Service
	ctx         context.Context
	cur         *settings
	useSemantic bool

	mapping privacy.Mapping
	// matches keep offsets into their own string value
	matches []privacy.Match
	semErr  error
}

func (w *jsonWalker) walk(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return w.scrub(val)
	case []interface{}:
		for i := range val {
			val[i] = w.walk(val[i])
		}
		return val
	case map[string]interface{}:
		// Sorted keys keep "first value" stable across runs
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val[k] = w.walk(val[k])
		}
		return val
	default:
		return v
	}
}

func (w *jsonWalker) scrub(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	// Stop asking the semantic source after its first failure
	useSemantic := w.useSemantic && w.semErr == nil
	res, err := w.svc.scrubText(w.ctx, w.cur, text, useSemantic)
	if err != nil {
		w.semErr = err
	}

	for placeholder, value := range res.Mapping {
		if _, seen := w.mapping[placeholder]; !seen {
			w.mapping[placeholder] = value
		}
	}
	w.matches = append(w.matches, res.Matches...)
	return res.Scrubbed
}
