package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/lea/pkg/agent"
	"github.com/harun/lea/pkg/catalog"
	"github.com/harun/lea/pkg/orchestrator"
)

var (
	runMode   string
	runModel  string
	runUser   string
	runRunID  string
	runVision bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run one prompt through the orchestrator",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		mode := runMode
		if mode == "" {
			mode = a.cfg.Orchestrator.DefaultMode
		}
		parsedMode, err := catalog.ParseMode(mode)
		if err != nil {
			return err
		}

		prompt := strings.Join(args, " ")
		result, err := a.orch.Run(cmd.Context(), orchestrator.RunRequest{
			RunID:          runRunID,
			UserID:         runUser,
			Mode:           parsedMode,
			ModelID:        runModel,
			Messages:       []agent.Message{{Role: "user", Content: prompt}},
			HasVisionInput: runVision,
		})
		if err != nil {
			return err
		}

		printResult(cmd, result)
		return nil
	},
}

func printResult(cmd *cobra.Command, result *orchestrator.RunResult) {
	cmd.Printf("run:    %s\n", result.RunID)
	cmd.Printf("status: %s\n", result.Status)
	if result.Model.ModelID != "" {
		cmd.Printf("model:  %s", result.Model.ModelID)
		if result.Model.Reason != "" {
			cmd.Printf(" (%s)", result.Model.Reason)
		}
		cmd.Println()
	}
	cmd.Printf("steps:  %d\n", result.Steps)

	switch result.Status {
	case orchestrator.StatusSuspended:
		cmd.Println("\nThe run is waiting for approval:")
		for _, req := range result.PendingApprovals {
			cmd.Printf("  %s  tool=%s\n", req.ID, req.ToolID)
		}
		cmd.Printf("\nDecide with: lea approvals decide %s <approval-id> --approve|--deny\n", result.RunID)
	default:
		if result.Response != "" {
			cmd.Println()
			cmd.Println(result.Response)
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "execution mode (coding, browser, cli, auto)")
	runCmd.Flags().StringVar(&runModel, "model", "", "explicit model id (empty defers to the router)")
	runCmd.Flags().StringVar(&runUser, "user", "", "user id (required)")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "resume-friendly run id (generated when empty)")
	runCmd.Flags().BoolVar(&runVision, "vision", false, "mark the request as carrying image input")

	rootCmd.AddCommand(runCmd)
}
