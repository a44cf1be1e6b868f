package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [chat-id]",
	Short: "List chats, or show the messages of one chat",
	Long: `Without arguments, list your chats newest first.
With a chat id, print the conversation.

Examples:
  chatblocks history
  chatblocks history 7b4c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		chats, err := apiClient.History(ctx)
		if err != nil {
			return fmt.Errorf("list chats: %w", err)
		}
		if len(chats) == 0 {
			fmt.Fprintln(out, "No chats found.")
			return nil
		}
		fmt.Fprintf(out, "Chats (%d):\n\n", len(chats))
		for _, c := range chats {
			fmt.Fprintf(out, "- %s  %s\n", c.ID, c.Title)
			if verbose {
				fmt.Fprintf(out, "  created %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
		}
		return nil
	}

	detail, err := apiClient.GetChat(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}
	fmt.Fprintf(out, "%s\n\n", detail.Chat.Title)
	for _, m := range detail.Messages {
		fmt.Fprintf(out, "[%s]\n", m.Role)
		for _, inv := range m.ToolInvocations {
			fmt.Fprintf(out, "  → %s %s\n", inv.ToolName, inv.Args)
			if verbose && len(inv.Result) > 0 {
				fmt.Fprintf(out, "  ← %s\n", inv.Result)
			}
		}
		if m.Content != "" {
			fmt.Fprintln(out, m.Content)
		}
		fmt.Fprintln(out)
	}
	return nil
}
