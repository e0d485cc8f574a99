package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/app"
	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
)

var version = "0.2.0"

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	output     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "aegisctl",
		Short: "Detect, scrub and restore PII in text and datasets",
		Long: `aegisctl scrubs personal data out of text before it is sent to an LLM and
restores it in the reply. Mappings are kept in the configured store so a
restore can run in a later invocation.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("invalid --output %q (must be text, json or yaml)", opts.output)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file path")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(
		newDetectCmd(opts),
		newScrubCmd(opts),
		newRestoreCmd(opts),
		newSummaryCmd(opts),
		newRedactCmd(opts),
		newForgetCmd(opts),
		newBatchCmd(opts),
	)
	return rootCmd
}

// runWithServices loads the configuration, builds the services and runs fn
func runWithServices(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, cfg *config.Config, services *app.Services, log *logger.Logger) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	// Memory mappings would not outlive this process
	if cfg.Store.Type == "memory" {
		cfg.Store.Type = "file"
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	services, err := app.Initialize(ctx, cfg, app.Options{}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Warn("Failed to close services", zap.Error(err))
		}
	}()

	return fn(ctx, cfg, services, log)
}

// inputFlags select where the text comes from
type inputFlags struct {
	text string
	file string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "text to process")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read text from file (\"-\" for stdin)")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
}

// read returns --text, the --file contents, or stdin
func (f *inputFlags) read(cmd *cobra.Command) (string, error) {
	if f.text != "" {
		return f.text, nil
	}

	var data []byte
	var err error
	if f.file != "" && f.file != "-" {
		data, err = os.ReadFile(f.file)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	text := string(data)
	if n := len(text); n > 0 && text[n-1] == '\n' {
		text = text[:n-1]
	}
	return text, nil
}
