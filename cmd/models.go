package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsRequireStreaming bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the candidate cascade in the order it would be tried",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), modelsRequireStreaming)
		if err != nil {
			return err
		}

		for i, candidate := range rt.candidates {
			fmt.Printf("%2d. %s\n", i+1, candidate.Label)
		}
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsRequireStreaming, "streaming", false, "Order the cascade as a streaming request would see it")
}
