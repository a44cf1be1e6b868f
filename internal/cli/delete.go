package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	deleteForce bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat",
	Long: `Delete a chat with its messages and votes.
Requires confirmation unless --force is used.

Examples:
  chatblocks delete 7b4c...
  chatblocks delete 7b4c... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	chatID := args[0]
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	detail, err := apiClient.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get chat: %w", err)
	}

	if !deleteForce {
		fmt.Fprintf(out, "About to delete: %s (%d messages)\n", detail.Chat.Title, len(detail.Messages))
		fmt.Fprint(out, "\nContinue? [y/N]: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := apiClient.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	fmt.Fprintf(out, "Deleted: %s\n", detail.Chat.Title)
	return nil
}
