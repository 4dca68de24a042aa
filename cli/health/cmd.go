package health

import (
	"github.com/spf13/cobra"

	"github.com/solweir/parley/cli"
	"github.com/solweir/parley/internal/agent"
	"github.com/solweir/parley/internal/configuration"
)

// NewCmd instantiates and returns the health command.
func NewCmd(config *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the agent service's health",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := agent.NewClient(config.Agent)
			response, err := client.Health(cmd.Context())
			if err != nil {
				cli.Error("Agent service is unreachable: %v", err)
				return err
			}
			if response.Status == "healthy" {
				cli.OK("Agent service is healthy: %s", response.Message)
			} else {
				cli.Error("Agent service reports %q: %s", response.Status, response.Message)
			}
			return nil
		},
	}
}
