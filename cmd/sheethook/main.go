package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/sheethook/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	// logLevel is the level of the default logger, raised to debug once the
	// loaded config asks for verbose output.
	logLevel *slog.LevelVar
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sheethook",
		Short:         "Spreadsheet row tracker for an affiliate content workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger, level := newLogger(verbose)
			slog.SetDefault(logger)
			logLevel = level
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional; SHEETHOOK_* variables override it)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newServeCommand(),
		newSetupCommand(),
		newArchiveCommand(),
		newNotifyTestCommand(),
		newCheckCommand(),
		newExportCommand(),
	)
	return root
}

// loadConfig reads the configuration. Commands that never call the webhook
// pass online=false and skip its validation.
func loadConfig(online bool) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyVerbose(cfg)

	validate := cfg.ValidateLocal
	if online {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyVerbose(cfg *config.Config) {
	if verbose {
		cfg.Verbose = true
	}
	if cfg.Verbose && logLevel != nil {
		logLevel.Set(slog.LevelDebug)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
