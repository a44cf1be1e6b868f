// Package cli provides the command-line interface for chatblocks.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatblocks/internal/client"
	"github.com/raphaelgruber/chatblocks/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string
	token     string

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatblocks",
	Short: "Streaming chat server with tool-driven documents",
	Long: `Chatblocks is a chat backend that streams model output to the browser,
lets the model call tools (weather lookup, document drafting, writing
suggestions) and persists chats, documents and votes.

Run "chatblocks serve" to start the server. The other commands are a thin
client for a running server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if token != "" {
			cfg.Token = token
		}
		apiClient = client.New(cfg.ServerURL, cfg.Token)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $CHATBLOCKS_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $CHATBLOCKS_TOKEN)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chatblocks %s\n", Version)
	},
}
