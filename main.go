package main

import (
	"github.com/spf13/cobra"

	"github.com/solweir/parley/cli/chat"
	"github.com/solweir/parley/cli/conversations"
	"github.com/solweir/parley/cli/health"
	"github.com/solweir/parley/internal/auth"
	"github.com/solweir/parley/internal/configuration"
)

const configFilepath = "~/.config/parley/config.json"

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "A CLI for conversing with remote agents",
}

func main() {
	config, err := configuration.Parse(configFilepath)
	if err != nil {
		panic(err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return auth.Gate(config.Password)
	}
	rootCmd.AddCommand(chat.NewCmd(config))
	rootCmd.AddCommand(conversations.NewCmd(config))
	rootCmd.AddCommand(health.NewCmd(config))
	rootCmd.Execute()
}
