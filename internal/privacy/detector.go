package privacy

import (
	"fmt"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"go.uber.org/zap"
)

// Detector runs an enabled subset of the pattern library. It is immutable
// after construction and safe for concurrent use; configuration changes
// build a new Detector.
type Detector struct {
	patterns []Pattern
	logger   *logger.Logger
	config   config.PrivacyConfig
}

// New creates a detector with the categories listed in cfg.Detectors enabled
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Detector, error) {
	enabled, err := enabledPatterns(cfg.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	detector := &Detector{
		patterns: enabled,
		logger:   log,
		config:   cfg,
	}

	log.Info("Privacy detector initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("total_patterns", len(patterns)),
		zap.Int("enabled_patterns", len(enabled)),
	)

	return detector, nil
}

// enabledPatterns resolves detector names against the pattern library.
// "all" enables every category.
func enabledPatterns(names []string) ([]Pattern, error) {
	on := make(map[Type]bool)
	for _, name := range names {
		if name == "all" {
			for _, p := range patterns {
				on[p.Type] = true
			}
			continue
		}

		found := false
		for _, p := range patterns {
			if string(p.Type) == name {
				on[p.Type] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown detector: %s", name)
		}
	}

	// Keep declaration order regardless of config order
	var enabled []Pattern
	for _, p := range patterns {
		if on[p.Type] {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}

// Detect runs the full pattern library over text
func Detect(text string) []Match {
	return detectWith(patterns, text)
}

// HasPII reports whether text contains any structural PII
func HasPII(text string) bool {
	for _, p := range patterns {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			if p.Validate == nil || p.Validate(text[loc[0]:loc[1]]) {
				return true
			}
		}
	}
	return false
}

// detectWith scans each category independently. Output is in category order,
// then scan order; overlaps across categories are left for the caller.
func detectWith(ps []Pattern, text string) []Match {
	if text == "" {
		return nil
	}

	var matches []Match
	for _, p := range ps {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if p.Validate != nil && !p.Validate(value) {
				continue
			}
			matches = append(matches, Match{
				Type:       p.Type,
				Value:      value,
				StartIndex: loc[0],
				EndIndex:   loc[1],
			})
		}
	}
	return matches
}

// Detect runs the enabled categories over text
func (d *Detector) Detect(text string) []Match {
	if !d.config.Enabled {
		return nil
	}

	matches := detectWith(d.patterns, text)
	if len(matches) > 0 {
		d.logger.Debug("PII detected",
			zap.Int("count", len(matches)),
			zap.Any("types", Summary("", matches)),
		)
	}
	return matches
}

// ScrubWithMapping is ScrubWithMapping restricted to the enabled categories
func (d *Detector) ScrubWithMapping(text string, extra []Match) ScrubResult {
	if !d.config.Enabled {
		return ScrubResult{Scrubbed: text, Mapping: Mapping{}}
	}
	return scrubWith(d.Detect, text, extra)
}

// Redact replaces matches in text; nil matches are detected with the enabled categories
func (d *Detector) Redact(text string, matches []Match) string {
	if matches == nil {
		text = Sanitize(text)
		matches = d.Detect(text)
	}
	return redact(text, matches)
}

// Summary counts matches per type; nil matches are detected with the enabled categories
func (d *Detector) Summary(text string, matches []Match) map[Type]int {
	if matches == nil {
		if isBlank(text) {
			return map[Type]int{}
		}
		matches = d.Detect(Sanitize(text))
	}
	return Summary("", matches)
}

// EnabledTypes returns the enabled categories in declaration order
func (d *Detector) EnabledTypes() []Type {
	types := make([]Type, len(d.patterns))
	for i, p := range d.patterns {
		types[i] = p.Type
	}
	return types
}

// Enabled reports whether detection is switched on
func (d *Detector) Enabled() bool {
	return d.config.Enabled
}
