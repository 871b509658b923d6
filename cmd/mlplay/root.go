package main

import (
	"context"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/internal/config"
	"github.com/YuminosukeSato/mlplayground/internal/registry"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

var version = "dev"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// app is shared by every subcommand. It is filled in by PersistentPreRunE.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string
	registry  string
	cfg       *config.App
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "mlplay",
		Short: "Train and compare tabular models from a CSV file",
		Long: `mlplay loads a CSV file, lets you pick a target column, and trains a
preprocessing + estimator pipeline on a train/test split. Fitted pipelines
can be stored in a local registry and used to score new files.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.mlplay/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", log.FormatConsole, "log format (console, json, text)")
	cmd.PersistentFlags().StringVar(&a.registry, "registry", "", "artifact database (default: <data_dir>/artifacts.db)")

	cmd.AddCommand(
		newInspectCmd(a),
		newRunCmd(a),
		newPredictCmd(a),
		newModelsCmd(a),
		newServeCmd(a),
		newEstimatorsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// init loads the configuration and applies explicit flag overrides.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("registry") {
		cfg.Registry = a.registry
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) openStore(ctx context.Context) (*registry.Store, error) {
	return registry.Open(ctx, a.cfg.Registry)
}
