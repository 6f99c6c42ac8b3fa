package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check the configuration without starting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration OK (model=%s, transport=%s, classifier=%s, sessions=%s)\n",
				cfg.Model.Provider, cfg.Agents.Transport, cfg.Classification.Mode, cfg.Session.Backend)
			for _, w := range cfg.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}
