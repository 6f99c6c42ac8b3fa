// Package commands implements the opsmesh command line.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/opsmesh"
	"github.com/hupe1980/opsmesh/internal/config"
	"github.com/hupe1980/opsmesh/logging"
)

type globalOptions struct {
	configPath string
	logLevel   string
	envFiles   []string
}

// NewRootCommand builds the opsmesh command tree.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "opsmesh",
		Short: "opsmesh - multi-agent coordination engine",
		Long: `opsmesh routes natural-language business requests to specialist agents,
aggregates their answers and gates side effects such as sending e-mail behind
explicit human approval.`,
		Version:       opsmesh.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "Dotenv files loaded before the configuration (default .env)")

	root.AddCommand(newServeCommand(g))
	root.AddCommand(newValidateCommand(g))
	root.AddCommand(newChatCommand(g))

	return root
}

// Execute runs the root command and prints any error.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig reads dotenv files, the config file and the environment, then
// applies flag overrides.
func loadConfig(g *globalOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(g.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, nil
}

// setupLogger builds the process logger and installs it as slog's default.
func setupLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.Config{Level: level, Format: cfg.Format, Output: out}
	slog.SetDefault(slog.New(logging.NewHandler(lc)))
	return logging.New(lc), nil
}
