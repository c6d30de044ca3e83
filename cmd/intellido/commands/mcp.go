package commands

import (
	"fmt"

	"github.com/ashish13377/Intellido/internal/app"
	"github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdio",
		Long:  "Expose createTodo, createMultipleTodos, getTodos, searchTodos, updateMatchingTodos and deleteTodosByQuery to MCP clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			log, err := fileLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync(log) }()

			a, err := app.New(cmd.Context(), cfg, log, app.Options{})
			if err != nil {
				log.Error("failed_to_start_mcp_server", zap.Error(err))
				return err
			}
			defer a.Close()

			log.Info("mcp_server_starting", zap.String("version", version))
			if err := mcp.NewServer(a.Tools, version, log).Run(cmd.Context()); err != nil {
				return fmt.Errorf("mcp server stopped: %w", err)
			}
			return nil
		},
	}
	return cmd
}
