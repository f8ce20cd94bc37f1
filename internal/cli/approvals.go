package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	decideApprove bool
	decideDeny    bool
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect and decide pending approval requests",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approval requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		pending, err := a.approvals.ListPending(cmd.Context())
		if err != nil {
			return err
		}

		if len(pending) == 0 {
			cmd.Println("No pending approvals.")
			return nil
		}

		for _, req := range pending {
			cmd.Printf("%s  run=%s  tool=%s  age=%s\n",
				req.ID, req.RunID, req.ToolID,
				time.Since(req.CreatedAt).Round(time.Second))
		}
		return nil
	},
}

var approvalsDecideCmd = &cobra.Command{
	Use:   "decide <run-id> <approval-id>",
	Short: "Approve or deny a pending request and resume the run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if decideApprove == decideDeny {
			return fmt.Errorf("exactly one of --approve or --deny is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.orch.Resume(cmd.Context(), args[0], args[1], decideApprove)
		if err != nil {
			return err
		}

		printResult(cmd, result)
		return nil
	},
}

var approvalsDiscardCmd = &cobra.Command{
	Use:   "discard <run-id>",
	Short: "Abandon a run, denying all its pending approvals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		denied, err := a.orch.Discard(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Printf("Run %s discarded; %d pending approval(s) denied.\n", args[0], denied)
		return nil
	},
}

func init() {
	approvalsDecideCmd.Flags().BoolVar(&decideApprove, "approve", false, "approve the request")
	approvalsDecideCmd.Flags().BoolVar(&decideDeny, "deny", false, "deny the request")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsDecideCmd)
	approvalsCmd.AddCommand(approvalsDiscardCmd)
	rootCmd.AddCommand(approvalsCmd)
}
