package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/metrics"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/shield"
	"github.com/raaihank/aegis-shield/internal/store"
)

// Pipeline scrubs datasets record by record
type Pipeline struct {
	scrubber   Scrubber
	fs         afero.Fs
	config     config.BatchConfig
	metrics    *metrics.Metrics
	logger     *logger.Logger
	onProgress func(Progress)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithProgress registers a progress callback
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

// WithMetrics counts records by outcome
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a new pipeline reading and writing through fs
func NewPipeline(scrubber Scrubber, fs afero.Fs, cfg config.BatchConfig, log *logger.Logger, opts ...Option) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.GetDefaults().Batch.BatchSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}

	p := &Pipeline{
		scrubber: scrubber,
		fs:       fs,
		config:   cfg,
		logger:   log.WithComponent("etl"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFile scrubs inputPath into outputPath. The output uses the input's
// format; format "" detects it from the input extension.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string, format FileFormat) (*ProcessingResult, error) {
	if format == "" {
		format = DetectFileFormat(inputPath)
	}

	p.logger.Info("Starting batch scrub",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
	)

	in, err := p.fs.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	readBatch, err := newReader(format, in)
	if err != nil {
		return nil, err
	}

	out, err := p.fs.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	writer, err := newWriter(format, out)
	if err != nil {
		return nil, err
	}

	result, err := p.Process(ctx, readBatch, writer)
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to finish output: %w", closeErr)
	}
	return result, err
}

// Process runs the batch loop over an arbitrary reader and writer
func (p *Pipeline) Process(ctx context.Context, readBatch readBatchFunc, writer recordWriter) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{Summary: make(map[privacy.Type]int)}
	nextReport := int64(p.config.ProgressReport)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, readErr := readBatch(p.config.BatchSize)
		if len(batch) > 0 {
			if err := p.processBatch(ctx, batch, writer, result); err != nil {
				return result, err
			}
		}
		if readErr != nil {
			return result, readErr
		}
		if len(batch) == 0 {
			break
		}

		if p.config.ProgressReport > 0 && result.TotalRecords >= nextReport {
			p.reportProgress(result, start)
			for nextReport <= result.TotalRecords {
				nextReport += int64(p.config.ProgressReport)
			}
		}
	}

	result.Duration = time.Since(start)
	p.reportProgress(result, start)

	p.logger.Info("Batch scrub completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("entities", result.Entities),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

type outcome struct {
	record  OutputRecord
	mapping privacy.Mapping
	matches []privacy.Match
	empty   bool
	err     error
}

// processBatch scrubs a batch on the worker pool, saves the mappings and
// writes the records in input order. Failed records are left out of the output.
func (p *Pipeline) processBatch(ctx context.Context, batch []Record, writer recordWriter, result *ProcessingResult) error {
	outcomes := make([]outcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.WorkerCount)
	for i := range batch {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.scrubRecord(gctx, batch[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	mappings := make(map[string]privacy.Mapping)
	for _, o := range outcomes {
		if o.err == nil && !o.empty {
			mappings[store.BatchKey(o.record.ID)] = o.mapping
		}
	}
	if p.config.SaveMappings && len(mappings) > 0 {
		if err := p.scrubber.SaveMappings(ctx, mappings); err != nil {
			return fmt.Errorf("failed to save batch mappings: %w", err)
		}
		result.MappingsSaved += int64(len(mappings))
	}

	for _, o := range outcomes {
		result.TotalRecords++
		if o.err != nil {
			result.ProcessedFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", o.record.ID, o.err))
			p.count("failed")
			continue
		}
		if err := writer.Write(o.record); err != nil {
			return fmt.Errorf("failed to write record %s: %w", o.record.ID, err)
		}

		result.ProcessedOK++
		if o.empty {
			result.Empty++
			p.count("empty")
			continue
		}
		result.Entities += int64(len(o.matches))
		for _, m := range o.matches {
			result.Summary[m.Type]++
		}
		p.count("ok")
	}
	return nil
}

func (p *Pipeline) scrubRecord(ctx context.Context, rec Record) outcome {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	o := outcome{record: OutputRecord{ID: rec.ID, Text: rec.Text, Entities: []Entity{}}}

	if strings.TrimSpace(rec.Text) == "" {
		o.empty = true
		return o
	}

	res, err := p.scrubber.Scrub(ctx, shield.ScrubRequest{
		Text:        rec.Text,
		UseSemantic: p.config.UseSemantic,
		Ephemeral:   true,
		Origin:      "batch",
	})
	if errors.Is(err, shield.ErrEmptyText) {
		o.empty = true
		return o
	}
	if err != nil {
		o.err = err
		return o
	}
	if res.SemanticErr != nil {
		p.logger.Debug("Semantic detection failed for record", zap.String("id", rec.ID), zap.Error(res.SemanticErr))
	}

	o.record.Text = res.Scrubbed
	o.mapping = res.Mapping
	o.matches = res.Matches
	for _, m := range res.Matches {
		o.record.Entities = append(o.record.Entities, Entity{Type: m.Type, Start: m.StartIndex, End: m.EndIndex})
	}
	return o
}

func (p *Pipeline) count(label string) {
	if p.metrics != nil {
		p.metrics.BatchRecords.WithLabelValues(label).Inc()
	}
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult, start time.Time) {
	elapsed := time.Since(start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(result.TotalRecords) / elapsed.Seconds()
	}

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_failed", result.ProcessedFailed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed),
	)

	if p.onProgress != nil {
		p.onProgress(Progress{Processed: result.TotalRecords, Failed: result.ProcessedFailed, Rate: rate})
	}
}
