package commands

import (
	"fmt"

	"github.com/ashish13377/Intellido/internal/config"
	"github.com/ashish13377/Intellido/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	debug      bool
}

// NewRootCmd creates the intellido command tree
func NewRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "intellido",
		Short:         "Conversational task manager",
		Long:          "Intellido turns free-text requests into task operations through a language model.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default ./intellido.yaml or ~/.intellido/intellido.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewChatCmd(flags, version))
	rootCmd.AddCommand(NewToolsCmd())
	rootCmd.AddCommand(NewMCPCmd(flags, version))

	return rootCmd
}

// loadConfig reads the explicit config file when given, otherwise searches
// the default locations
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configFile != "" {
		cfg, err = config.LoadFile(f.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if f.debug {
		cfg.DebugMode = true
	}
	return cfg, nil
}

// fileLogger logs to LOG_FILE so stdout stays free for the console or the
// MCP transport
func fileLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.NewProductionLogger(cfg.DebugMode, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
