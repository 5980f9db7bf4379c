package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilbenny1002/idxagent/config"
)

func newConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configFile, err := config.Load(opts.flagOptions(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if configFile == "" {
				fmt.Fprintln(out, "# no config file found, showing defaults")
			} else {
				fmt.Fprintf(out, "# loaded from %s\n", configFile)
			}
			return config.PrintConfig(out, cfg)
		},
	}
}
