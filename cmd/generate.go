package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/planweaver/planweaver/pkg/events"
	"github.com/planweaver/planweaver/pkg/orchestrator"
	"github.com/planweaver/planweaver/pkg/plan"
)

var (
	generateJSON      bool
	generateNoStream  bool
	generateEstimate  int
	generateShowDiffs bool
)

var generateCmd = &cobra.Command{
	Use:   "generate \"describe the change you want\"",
	Short: "Generate a validated change plan for a request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := buildRuntime(ctx, false)
		if err != nil {
			return err
		}
		if generateNoStream {
			rt.cfg.StreamingEnabled = false
		}

		var sink events.Sink
		if generateJSON {
			sink = events.NewNDJSONSink(os.Stdout)
		} else {
			sink = &consoleSink{width: terminalWidth()}
		}

		o := rt.newOrchestrator(sink)
		outcome, err := o.Generate(ctx, orchestrator.Request{
			Prompt:         strings.Join(args, " "),
			Candidates:     rt.candidates,
			BudgetEstimate: generateEstimate,
		})
		if err != nil {
			return err
		}

		if generateJSON {
			// The plan event already went to stdout; nothing more to print.
			return nil
		}
		printOutcome(outcome)
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Emit events as NDJSON instead of human-readable output")
	generateCmd.Flags().BoolVar(&generateNoStream, "no-stream", false, "Disable streaming even for streaming-capable models")
	generateCmd.Flags().IntVar(&generateEstimate, "budget-estimate", 16000, "Token estimate reserved against the budget for this attempt")
	generateCmd.Flags().BoolVar(&generateShowDiffs, "diffs", false, "Show diff previews for file edit steps")
}

func printOutcome(outcome *orchestrator.Outcome) {
	fmt.Printf("\nPlan from %s (%d call(s), %s):\n", outcome.Meta.Label, outcome.Meta.Calls, outcome.Meta.Elapsed.Round(time.Millisecond))
	if outcome.Plan.Summary != "" {
		fmt.Printf("  %s\n", outcome.Plan.Summary)
	}
	for i, step := range outcome.Plan.Steps {
		fmt.Printf("  %d. %s\n", i+1, step.Label())
		if generateShowDiffs && step.Type == plan.StepTypeFileEdit {
			if diff := step.DiffPreview(); diff != "" {
				for _, line := range strings.Split(diff, "\n") {
					fmt.Printf("     %s\n", line)
				}
			}
		}
	}
	for _, warning := range outcome.Meta.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}

// consoleSink renders events one per line, truncated to the terminal width
// so raw model previews never wrap the display into noise.
type consoleSink struct {
	width int
}

func (s *consoleSink) Emit(event events.Event) {
	line := fmt.Sprintf("[%s] %s", event.Type, strings.ReplaceAll(event.Message, "\n", " "))
	if s.width > 8 && len(line) > s.width {
		line = line[:s.width-3] + "..."
	}
	fmt.Fprintln(os.Stderr, line)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 120
	}
	return width
}
