package conversations

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/solweir/parley/cli"
	"github.com/solweir/parley/internal/agent"
	"github.com/solweir/parley/internal/configuration"
	"github.com/solweir/parley/internal/conversation"
	"github.com/solweir/parley/internal/debug"
	"github.com/solweir/parley/internal/store"
)

// NewCmd instantiates and returns the conversations command.
func NewCmd(config *configuration.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}
	cmd.AddCommand(newListCmd(config))
	cmd.AddCommand(newDeleteCmd(config))
	return cmd
}

func newListCmd(config *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversations",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := store.New(ctx, config.Store)
			cobra.CheckErr(err)
			defer s.Close()

			cli.Title("CONVERSATIONS")
			conversations, err := s.ListConversations(ctx)
			cobra.CheckErr(err)
			if len(conversations) == 0 {
				cli.OK("No conversations yet")
				return nil
			}
			for _, c := range conversations {
				cli.Row(c.Title, "("+c.ID+") "+humanize.Time(c.UpdatedAt))
			}
			return nil
		},
	}
}

func newDeleteCmd(config *configuration.Config) *cobra.Command {
	var opts struct {
		Force bool
	}
	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			s, err := store.New(ctx, config.Store)
			cobra.CheckErr(err)
			defer s.Close()

			c, err := s.GetConversation(ctx, id)
			cobra.CheckErr(err)
			if !opts.Force && !cli.Confirm("Delete conversation %q?", c.Title) {
				cli.OK("Aborted")
				return nil
			}

			agentClient := agent.NewClient(config.Agent)
			synchronizer := conversation.NewSynchronizer(s, agentClient, debug.GetLogger())
			if err := synchronizer.DeleteConversation(ctx, id); err != nil {
				cli.Error("Failed to delete conversation: %v", err)
				return err
			}
			cli.OK("Deleted conversation %s", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Skip confirmation")
	return cmd
}
