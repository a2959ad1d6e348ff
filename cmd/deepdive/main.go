// deepdive researches a company across several data providers and prints a
// synthesized sales-intelligence report.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deepdive/deepdive/internal/app"
	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/synth/gemini"
	"github.com/deepdive/deepdive/internal/util"
	"github.com/deepdive/deepdive/internal/version"
)

// configError marks failures the user fixes by adjusting flags or
// environment, distinguishing exit code 2 from runtime failures (1).
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "deepdive: %s\n", util.RedactSecrets(err.Error()))
		var ce *configError
		if errors.As(err, &ce) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type rootFlags struct {
	verbose    bool
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "deepdive",
		Short:         "AI-powered sales intelligence for company research",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Optional YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Env file to load (default: .env if present)")

	root.AddCommand(newResearchCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func newResearchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "research <company>",
		Short:   "Research a company and generate sales insights",
		Example: `  deepdive research "Flagship Amsterdam"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd.Context(), flags, args[0])
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deepdive version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.Current)
		},
	}
}

func runResearch(parent context.Context, flags *rootFlags, company string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil {
			return &configError{err: fmt.Errorf("load env file: %w", err)}
		}
	} else {
		// Best effort, matching the usual .env convention.
		_ = godotenv.Load()
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return &configError{err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &configError{err: err}
	}

	logger, err := newLogger(flags.verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	synthesizer, err := gemini.New(ctx, cfg.Gemini, retry.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffBase: cfg.Retry.BackoffBase,
	})
	if err != nil {
		return &configError{err: err}
	}

	a := app.New(cfg, synthesizer, logger.Sugar(), os.Stdout)
	return a.Run(ctx, company)
}

// newLogger writes human-readable progress to stderr so stdout stays clean
// for the report itself.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
