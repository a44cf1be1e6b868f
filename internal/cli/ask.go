package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/models"
)

var errStreamFailed = errors.New("the reply ended with an error")

var (
	askChatID string
	askModel  string
	askWS     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a message and stream the reply",
	Long: `Send a message to the server and stream the model's reply to stdout.

Without --chat a new chat is created; its id is printed at the end so the
conversation can be continued. Tool calls are shown on their own lines; use
-v to also see arguments, results and the document draft as it is written.

Examples:
  chatblocks ask "What's the weather in Vienna?"
  chatblocks ask "Write an essay about silicon valley" -v
  chatblocks ask "Make it shorter" --chat 7b4c...
  chatblocks ask "Hello" --ws`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askChatID, "chat", "c", "", "continue an existing chat")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "gpt-4o-mini", "model id from the catalog")
	askCmd.Flags().BoolVar(&askWS, "ws", false, "stream over the WebSocket endpoint")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var history []models.UIMessage
	if askChatID != "" {
		detail, err := apiClient.GetChat(ctx, askChatID)
		if err != nil {
			return fmt.Errorf("load chat: %w", err)
		}
		history = detail.Messages
	}

	req := chat.Request{
		ID:       askChatID,
		ModelID:  askModel,
		Messages: append(history, models.UIMessage{Role: models.RoleUser, Content: args[0]}),
	}

	out := cmd.OutOrStdout()
	printer := newPartPrinter(out, verbose)

	send := apiClient.Chat
	if askWS {
		send = apiClient.ChatWS
	}
	chatID, err := send(ctx, req, printer.Print)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out)
		return nil
	}
	if err != nil {
		return err
	}
	if printer.Err != "" {
		return errStreamFailed
	}

	if askChatID == "" && chatID != "" {
		fmt.Fprintln(out, printer.style(printer.theme.hintStyle(), "chat: "+chatID))
	}
	return nil
}
