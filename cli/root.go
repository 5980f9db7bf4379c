// Package cli defines the idxagent command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/basilbenny1002/idxagent/config"
)

type options struct {
	configFile string
	logFile    string
	logLevel   string
	console    bool
	backend    string
}

// flagOptions returns the overrides the user actually passed.
func (o *options) flagOptions(cmd *cobra.Command) config.FlagOptions {
	f := config.FlagOptions{
		ConfigFile: o.configFile,
		LogFile:    o.logFile,
		LogLevel:   o.logLevel,
		Backend:    o.backend,
	}
	if cmd.Flags().Changed("console") {
		console := o.console
		f.LogToConsole = &console
	}
	return f
}

func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "idxagent",
		Short: "Watch local drives and hand new files to the indexer",
		Long: `idxagent watches every fixed, ready drive for newly created files and
folders. Paths matching the skip rules are ignored; every other path is
passed to the indexer script once it has settled.

Run without a subcommand to start the agent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to config file (default: config.yaml next to the binary)")
	pf.StringVar(&opts.logFile, "logfile", "", "Log file or directory, overrides logdest")
	pf.StringVar(&opts.logLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&opts.console, "console", false, "Log to console instead of file")
	pf.StringVar(&opts.backend, "backend", "", "Watch backend (auto, native, fsnotify, poll)")

	cmd.AddCommand(
		newRootsCommand(opts),
		newCheckCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

// Execute runs the command line. Errors are logged once here.
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		slog.Error("idxagent failed", "error", err)
	}
	return err
}
