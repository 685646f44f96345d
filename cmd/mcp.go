package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"reportharness/internal/config"
	"reportharness/internal/containerizer"
	"reportharness/internal/mcpserver"
	"reportharness/internal/scheduler"
	"reportharness/pkg/logging"

	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Expose the harness as MCP tools over stdio",
		Long: `mcp-server lets AI assistants list and run test cases through the Model
Context Protocol. Stdout carries the protocol, logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: runMCPServer,
	}
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	runtime, err := containerizer.NewContainerRuntime(cfg.ContainerRuntime)
	if err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(cfg, func(c config.Config) mcpserver.Runner {
		return scheduler.New(c, scheduler.Deps{
			Runtime: runtime,
			Logger:  logging.For("Scheduler"),
		})
	}, GetVersion(), logging.For("MCP"))
	return srv.Start(ctx)
}
