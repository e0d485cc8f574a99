package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/raaihank/aegis-shield/internal/app"
	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/etl"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/shield"
)

func newDetectCmd(opts *globalOptions) *cobra.Command {
	var in inputFlags
	var useSemantic bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List PII matches with their byte offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				res := s.Shield.Detect(ctx, text, useSemantic)
				return render(cmd.OutOrStdout(), opts.output, newDetectOutput(res))
			})
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also detect names, organisations and places")
	return cmd
}

func newScrubCmd(opts *globalOptions) *cobra.Command {
	var in inputFlags
	var session string
	var useSemantic, ephemeral bool

	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Replace PII with placeholders and keep the mapping for restore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				res, err := s.Shield.Scrub(ctx, shield.ScrubRequest{
					SessionID:   session,
					Text:        text,
					UseSemantic: useSemantic,
					Ephemeral:   ephemeral,
					Origin:      "cli",
				})
				if err != nil {
					return err
				}
				if res.Warning != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", res.Warning)
				}
				return render(cmd.OutOrStdout(), opts.output, newScrubOutput(res))
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&session, "session", "s", "", "mapping session key (default from store.default_key)")
	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also scrub names, organisations and places")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "do not store the mapping")
	return cmd
}

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	var in inputFlags
	var session string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Put the original values back in place of placeholders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				restored, err := s.Shield.Restore(ctx, session, text)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, textOutput{Text: restored})
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&session, "session", "s", "", "mapping session key (default from store.default_key)")
	return cmd
}

func newSummaryCmd(opts *globalOptions) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count PII per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				return render(cmd.OutOrStdout(), opts.output, summaryOutput{Summary: s.Shield.Summary(ctx, text)})
			})
		},
	}
	in.register(cmd)
	return cmd
}

func newRedactCmd(opts *globalOptions) *cobra.Command {
	var in inputFlags
	var useSemantic bool

	cmd := &cobra.Command{
		Use:   "redact",
		Short: "Replace PII with placeholders without keeping a mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := in.read(cmd)
			if err != nil {
				return err
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				redacted, err := s.Shield.Redact(ctx, text, useSemantic)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, textOutput{Text: redacted})
			})
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also redact names, organisations and places")
	return cmd
}

func newForgetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget [session]",
		Short: "Delete a stored mapping",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var session string
			if len(args) == 1 {
				session = args[0]
			}
			return runWithServices(cmd, opts, func(ctx context.Context, _ *config.Config, s *app.Services, _ *logger.Logger) error {
				return s.Shield.Forget(ctx, session)
			})
		},
	}
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		input, output, format string
		batchSize, workers    int
		useSemantic, noSave   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scrub a CSV, Parquet or JSON lines dataset of {id, text} records",
		Example: `  aegisctl batch --input prompts.csv --output-file prompts.scrubbed.csv
  aegisctl batch --input prompts.parquet --output-file out.parquet --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var fileFormat etl.FileFormat
			if format != "" {
				f, ok := etl.ParseFileFormat(format)
				if !ok {
					return fmt.Errorf("invalid --format %q (must be csv, parquet or jsonl)", format)
				}
				fileFormat = f
			}
			if output == "" {
				output = defaultOutputPath(input)
			}

			return runWithServices(cmd, opts, func(ctx context.Context, cfg *config.Config, s *app.Services, log *logger.Logger) error {
				batch := cfg.Batch
				if cmd.Flags().Changed("batch-size") {
					batch.BatchSize = batchSize
				}
				if cmd.Flags().Changed("workers") {
					batch.WorkerCount = workers
				}
				if cmd.Flags().Changed("semantic") {
					batch.UseSemantic = useSemantic
				}
				if noSave {
					batch.SaveMappings = false
				}

				pipeline := etl.NewPipeline(s.Shield, afero.NewOsFs(), batch, log, etl.WithMetrics(s.Metrics))
				result, err := pipeline.ProcessFile(ctx, input, output, fileFormat)
				if err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d records failed\n", len(result.Errors))
				}
				return render(cmd.OutOrStdout(), opts.output, newBatchOutput(output, result))
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input dataset file")
	cmd.Flags().StringVar(&output, "output-file", "", "output file (default <input>.scrubbed.<ext>)")
	cmd.Flags().StringVar(&format, "format", "", "csv, parquet or jsonl (default from the input extension)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "records per batch")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent scrub workers")
	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also scrub names, organisations and places")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store per-record mappings")
	cmd.MarkFlagRequired("input")
	return cmd
}

// defaultOutputPath turns data.csv into data.scrubbed.csv
func defaultOutputPath(input string) string {
	if i := strings.LastIndex(input, "."); i > strings.LastIndex(input, "/") {
		return input[:i] + ".scrubbed" + input[i:]
	}
	return input + ".scrubbed"
}
