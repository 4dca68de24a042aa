package chat

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/solweir/parley/internal/agent"
	"github.com/solweir/parley/internal/configuration"
	"github.com/solweir/parley/internal/conversation"
	"github.com/solweir/parley/internal/debug"
	"github.com/solweir/parley/internal/store"
)

// NewCmd instantiates and returns the chat command.
func NewCmd(config *configuration.Config) *cobra.Command {
	var opts struct {
		ConversationID string
		Agent          string
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Converse with an agent",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if opts.Agent == "" {
				opts.Agent = config.Agent.DefaultAgent
			}

			s, err := store.New(ctx, config.Store)
			cobra.CheckErr(err)
			defer s.Close()

			agentClient := agent.NewClient(config.Agent)
			synchronizer := conversation.NewSynchronizer(s, agentClient, debug.GetLogger())

			m, err := New(ctx, config, synchronizer, opts.Agent, opts.ConversationID)
			if err != nil {
				return err
			}

			p := tea.NewProgram(
				m,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)

			// Program reference for messages sent from goroutines.
			m.SetProgram(p)
			synchronizer.SetOnChange(func() {
				p.Send(syncUpdatedMsg{})
			})

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running chat: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConversationID, "id", "", "open a specific conversation")
	cmd.Flags().StringVarP(&opts.Agent, "agent", "a", "", "agent to converse with")
	return cmd
}
