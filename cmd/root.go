package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planweaver",
	Short: "Turn LLM output into validated change plans",
	Long: `Planweaver asks a cascade of language models for a software change plan,
recovers the JSON out of whatever the model actually returned, validates the
plan's shape, and retries with corrective prompts until a usable plan exists
or every candidate is exhausted.

Available commands:
  generate - Generate a validated change plan for a request
  models   - Show the candidate cascade in the order it would be tried
  serve    - Stream generation events over a websocket
  version  - Print the version`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
