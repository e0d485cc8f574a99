// Package shield composes the detection engine, the optional semantic source
// and the mapping store into the scrub and restore operations.
package shield

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/semantic"
	"github.com/raaihank/aegis-shield/internal/store"
)

var (
	// ErrEmptyText is returned when there is nothing to scrub
	ErrEmptyText = errors.New("text is empty")
	// ErrSemanticUnavailable is returned when semantic detection is requested but not configured
	ErrSemanticUnavailable = errors.New("semantic detection is not enabled")
)

// Events receives notifications for live monitoring
type Events interface {
	PIIDetected(origin, sessionID string, summary map[privacy.Type]int)
	SemanticProgress(p semantic.Progress)
}

// Options carries optional collaborators. Nil fields get defaults.
type Options struct {
	Semantic semantic.Source
	Store    store.Store
	Metrics  *metrics.Metrics
	Events   Events
}

// ScrubRequest is a reversible scrub of one text
type ScrubRequest struct {
	SessionID   string
	Text        string
	UseSemantic bool
	// Ephemeral skips persisting the mapping
	Ephemeral bool
	// Origin labels events and logs, e.g. "api" or "proxy"
	Origin string
}

// ScrubResult contains the scrubbed text and its mapping
type ScrubResult struct {
	SessionID string               `json:"session_id,omitempty"`
	Scrubbed  string               `json:"scrubbed"`
	Mapping   privacy.Mapping      `json:"mapping"`
	Summary   map[privacy.Type]int `json:"summary"`
	Warning   string               `json:"warning,omitempty"`
	// SemanticErr is set when semantic detection failed and only structural PII was redacted
	SemanticErr error           `json:"-"`
	Matches     []privacy.Match `json:"-"`
}

// DetectResult lists matches against the sanitized text
type DetectResult struct {
	Text        string               `json:"text"`
	OffsetUnit  string               `json:"offsetUnit"`
	Matches     []privacy.Match      `json:"matches"`
	Summary     map[privacy.Type]int `json:"summary"`
	Warning     string               `json:"warning,omitempty"`
	SemanticErr error                `json:"-"`
}

// OffsetUnitUTF8Bytes labels match offsets as indexes into the UTF-8 bytes of
// the returned text.
const OffsetUnitUTF8Bytes = "utf8-byte"

// settings is swapped as a whole on reload
type settings struct {
	detector        *privacy.Detector
	semanticTimeout time.Duration
	defaultKey      string
}

// Service is safe for concurrent use
type Service struct {
	current  atomic.Pointer[settings]
	semantic semantic.Source
	store    store.Store
	metrics  *metrics.Metrics
	events   Events
	logger   *logger.Logger

	structural map[privacy.Type]bool
}

// New creates the service
func New(cfg *config.Config, opts Options, log *logger.Logger) (*Service, error) {
	log = log.WithComponent("shield")

	s := &Service{
		semantic:   opts.Semantic,
		store:      opts.Store,
		metrics:    opts.Metrics,
		events:     opts.Events,
		logger:     log,
		structural: make(map[privacy.Type]bool),
	}
	if s.store == nil {
		s.store = store.NewMemory(cfg.Store.TTL)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	for _, t := range privacy.StructuralTypes() {
		s.structural[t] = true
	}

	if err := s.Reload(cfg); err != nil {
		return nil, err
	}

	log.Info("Shield service initialized",
		zap.Bool("semantic", s.semantic != nil),
		zap.String("store", cfg.Store.Type),
	)
	return s, nil
}

// Reload applies privacy and semantic settings from cfg. In-flight calls
// finish with the settings they started with.
func (s *Service) Reload(cfg *config.Config) error {
	detector, err := privacy.New(cfg.Privacy, s.logger)
	if err != nil {
		return err
	}

	defaultKey := cfg.Store.DefaultKey
	if defaultKey == "" {
		defaultKey = config.GetDefaults().Store.DefaultKey
	}

	s.current.Store(&settings{
		detector:        detector,
		semanticTimeout: cfg.Semantic.Timeout,
		defaultKey:      defaultKey,
	})
	return nil
}

// Detector returns the active detector
func (s *Service) Detector() *privacy.Detector {
	return s.current.Load().detector
}

// SemanticEnabled reports whether a semantic source is configured
func (s *Service) SemanticEnabled() bool {
	return s.semantic != nil
}

// Scrub redacts PII from the text and stores the mapping under the session key.
// A semantic failure is reported in the result, not as an error.
func (s *Service) Scrub(ctx context.Context, req ScrubRequest) (*ScrubResult, error) {
	start := time.Now()
	cur := s.current.Load()

	if strings.TrimSpace(req.Text) == "" {
		s.metrics.Scrubs.WithLabelValues("empty").Inc()
		return nil, ErrEmptyText
	}

	res, semErr := s.scrubText(ctx, cur, req.Text, req.UseSemantic)
	result := &ScrubResult{
		Scrubbed: res.Scrubbed,
		Mapping:  res.Mapping,
		Summary:  privacy.Summary("", res.Matches),
		Matches:  res.Matches,
	}
	if err := s.finish(ctx, cur, req, result, semErr, start); err != nil {
		return nil, err
	}
	return result, nil
}

// scrubText sanitizes text and redacts structural and, when asked, semantic matches
func (s *Service) scrubText(ctx context.Context, cur *settings, text string, useSemantic bool) (privacy.ScrubResult, error) {
	text = privacy.Sanitize(text)

	var extra []privacy.Match
	var semErr error
	if useSemantic && strings.TrimSpace(text) != "" {
		extra, semErr = s.detectSemantic(ctx, cur, text)
	}
	return cur.detector.ScrubWithMapping(text, extra), semErr
}

// finish persists the mapping and records metrics and events for a scrub
func (s *Service) finish(ctx context.Context, cur *settings, req ScrubRequest, result *ScrubResult, semErr error, start time.Time) error {
	if semErr != nil {
		result.SemanticErr = semErr
		result.Warning = "semantic detection failed, only structural PII was redacted: " + semErr.Error()
	}

	if !req.Ephemeral {
		key := s.sessionKey(cur, req.SessionID)
		// An empty mapping is stored too so a later restore cannot reuse a stale one
		if err := s.store.Set(ctx, map[string]privacy.Mapping{key: result.Mapping}); err != nil {
			s.metrics.Scrubs.WithLabelValues("store_error").Inc()
			return fmt.Errorf("failed to save mapping: %w", err)
		}
		result.SessionID = key
	}

	for _, m := range result.Matches {
		s.metrics.Matches.WithLabelValues(string(m.Type), s.source(m.Type)).Inc()
	}
	s.metrics.Scrubs.WithLabelValues("ok").Inc()
	s.metrics.ObserveScrubLatency(time.Since(start))

	if len(result.Matches) > 0 {
		s.logger.Info("PII scrubbed",
			zap.String("origin", req.Origin),
			zap.Int("count", len(result.Matches)),
			zap.Any("types", result.Summary),
		)
		if s.events != nil {
			s.events.PIIDetected(req.Origin, result.SessionID, result.Summary)
		}
	}
	return nil
}

// Restore replaces placeholders in text with the session's stored values
func (s *Service) Restore(ctx context.Context, sessionID, text string) (string, error) {
	key := s.sessionKey(s.current.Load(), sessionID)

	mappings, err := s.store.Get(ctx, key)
	if err != nil {
		s.metrics.Restores.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("failed to load mapping: %w", err)
	}

	restored, err := privacy.Restore(text, mappings[key])
	if err != nil {
		s.metrics.Restores.WithLabelValues("nothing_to_restore").Inc()
		return "", err
	}

	s.metrics.Restores.WithLabelValues("ok").Inc()
	return restored, nil
}

// Detect returns structural matches merged with semantic ones when requested
func (s *Service) Detect(ctx context.Context, text string, useSemantic bool) *DetectResult {
	cur := s.current.Load()
	text = privacy.Sanitize(text)

	matches := privacy.Resolve(cur.detector.Detect(text))

	result := &DetectResult{Text: text, OffsetUnit: OffsetUnitUTF8Bytes}
	if useSemantic && strings.TrimSpace(text) != "" {
		extra, err := s.detectSemantic(ctx, cur, text)
		if err != nil {
			result.SemanticErr = err
			result.Warning = "semantic detection failed: " + err.Error()
		} else {
			matches = privacy.Merge(matches, privacy.Resolve(extra))
		}
	}

	if matches == nil {
		matches = []privacy.Match{}
	}
	result.Matches = matches
	result.Summary = privacy.Summary("", matches)
	return result
}

// Redact is the irreversible form: nothing is stored
func (s *Service) Redact(ctx context.Context, text string, useSemantic bool) (string, error) {
	res, err := s.Scrub(ctx, ScrubRequest{Text: text, UseSemantic: useSemantic, Ephemeral: true, Origin: "redact"})
	if err != nil {
		return "", err
	}
	return res.Scrubbed, nil
}

// Summary counts structural PII per type
func (s *Service) Summary(_ context.Context, text string) map[privacy.Type]int {
	return s.Detector().Summary(text, nil)
}

// Forget removes the session's mapping
func (s *Service) Forget(ctx context.Context, sessionID string) error {
	key := s.sessionKey(s.current.Load(), sessionID)
	if err := s.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to remove mapping: %w", err)
	}
	s.logger.Info("Mapping forgotten", zap.String("session", key))
	return nil
}

// SaveMappings stores several mappings at once
func (s *Service) SaveMappings(ctx context.Context, items map[string]privacy.Mapping) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.store.Set(ctx, items); err != nil {
		return fmt.Errorf("failed to save mappings: %w", err)
	}
	return nil
}

// PreloadSemantic loads the semantic backend, reporting progress to onProgress and to events
func (s *Service) PreloadSemantic(ctx context.Context, onProgress semantic.ProgressFunc) error {
	if s.semantic == nil {
		return ErrSemanticUnavailable
	}

	return s.semantic.Preload(ctx, func(p semantic.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
		if s.events != nil {
			s.events.SemanticProgress(p)
		}
	})
}

// Close releases the semantic backend and the store
func (s *Service) Close() error {
	var errs []error
	if s.semantic != nil {
		errs = append(errs, s.semantic.Dispose())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

func (s *Service) detectSemantic(ctx context.Context, cur *settings, text string) ([]privacy.Match, error) {
	if s.semantic == nil {
		return nil, ErrSemanticUnavailable
	}

	if cur.semanticTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cur.semanticTimeout)
		defer cancel()
	}

	matches, err := s.semantic.Detect(ctx, text)
	if err != nil {
		stage := "detect"
		var semErr *semantic.Error
		if errors.As(err, &semErr) {
			stage = semErr.Type
		} else if errors.Is(err, context.DeadlineExceeded) {
			stage = "timeout"
		}
		s.metrics.SemanticFailures.WithLabelValues(stage).Inc()
		s.logger.Warn("Semantic detection failed, continuing with structural detection", zap.Error(err))
		return nil, err
	}
	return matches, nil
}

func (s *Service) sessionKey(cur *settings, sessionID string) string {
	if sessionID == "" {
		return cur.defaultKey
	}
	return sessionID
}

func (s *Service) source(t privacy.Type) string {
	if s.structural[t] {
		return "structural"
	}
	return "semantic"
}
