package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilbenny1002/idxagent/config"
	"github.com/basilbenny1002/idxagent/filter"
)

func newCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>...",
		Short: "Show whether paths would be skipped or dispatched",
		Long: `Evaluate each path against the effective skip rules without watching
anything. Prints "skip" or "dispatch" followed by the path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(opts.flagOptions(cmd))
			if err != nil {
				return err
			}
			f := filter.New(cfg.Rules())

			out := cmd.OutOrStdout()
			for _, p := range args {
				verdict := "dispatch"
				if f.ShouldSkip(p) {
					verdict = "skip"
				}
				fmt.Fprintf(out, "%s\t%s\n", verdict, p)
			}
			return nil
		},
	}
}
