package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/basilbenny1002/idxagent/config"
	"github.com/basilbenny1002/idxagent/volumes"
)

func newRootsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List detected drives and whether they would be watched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(opts.flagOptions(cmd))
			if err != nil {
				return err
			}
			vols, err := volumes.System{}.Volumes()
			if err != nil {
				return err
			}
			return printRoots(cmd.OutOrStdout(), vols, cfg.Watch.Roots)
		},
	}
}

func printRoots(w io.Writer, vols []volumes.Volume, configured []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tKIND\tREADY\tFS\tWATCH")
	for _, v := range vols {
		watch := "no"
		if v.Eligible() && len(configured) == 0 {
			watch = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", v.Root, v.Kind, v.Ready, v.FSType, watch)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(configured) > 0 {
		fmt.Fprintln(w, "\nConfigured roots (drive detection is not used):")
		for _, r := range configured {
			fmt.Fprintln(w, "  "+r)
		}
	}
	return nil
}
