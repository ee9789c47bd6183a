// Package cmd contains the briefly CLI entry points.
//
// Commands:
//   - briefly serve    - run the HTTP API server (default)
//   - briefly refresh  - run one knowledge base refresh and exit
//   - briefly version  - show version information
package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "briefly",
	Short: "briefly - news-grounded chat assistant",
	Long: `briefly serves a streaming chat assistant grounded in a locally
built news knowledge base. It ingests RSS feeds, NewsAPI headlines and
uploaded PDFs, indexes them for semantic retrieval, and streams answers
(with the model's reasoning) over SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand starts the server.
		return runServe(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: $HOME/.briefly/config.yaml)")
}
