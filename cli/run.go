package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basilbenny1002/idxagent/agent"
	"github.com/basilbenny1002/idxagent/config"
	"github.com/basilbenny1002/idxagent/service"
)

func runAgent(cmd *cobra.Command, opts *options) error {
	cfg, configFile, err := config.Load(opts.flagOptions(cmd))
	if err != nil {
		return err
	}

	// set up logging once we know where to log to. If this fails there is
	// a bigger problem that needs to be resolved first.
	logFile, err := config.SetupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	config.LogSource(configFile)

	a, err := agent.New(cfg)
	if err != nil {
		return err
	}

	isService, err := service.IsWindowsService()
	if err != nil {
		return fmt.Errorf("failed to determine session type: %w", err)
	}
	if isService {
		return service.Run(config.AppName, a.Run, cfg.HeartbeatInterval())
	}

	slog.Info("Running standalone outside of Windows Service Control Manager")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
