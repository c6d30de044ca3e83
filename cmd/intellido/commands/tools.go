package commands

import (
	"encoding/json"
	"fmt"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/tools"
	"github.com/spf13/cobra"
)

// NewToolsCmd creates the tools command
func NewToolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog",
		Long:  "Print every tool the model may call, with a description and an example input",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := tools.NewRegistry(tools.Config{}).Describe()

			var (
				out []byte
				err error
			)
			if asJSON {
				out, err = json.MarshalIndent(catalog, "", "  ")
			} else {
				out, err = agent.CatalogYAML(catalog)
			}
			if err != nil {
				return fmt.Errorf("failed to render catalog: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}
