package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/DocFlow/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "docflow",
		Short: "Guided conversations that turn answers into design documents",
		Long: `DocFlow walks a document through the concept, requirements, design and
implementation phases. Each phase has an agent that asks questions and
writes the answers into the document's sections.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("DOCFLOW_CONFIG"), "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newChatCmd(opts),
		newServeCmd(opts),
		newPhasesCmd(),
		newValidateCmd(),
		newEvaluateCmd(opts),
	)
	return cmd
}

// loadConfig loads configuration and installs the configured logger as the default.
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
