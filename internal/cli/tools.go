package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/lea/pkg/catalog"
)

var toolsMode string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool registry for an execution mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		mode, err := catalog.ParseMode(toolsMode)
		if err != nil {
			return err
		}

		snap, err := a.store.Snapshot(cmd.Context())
		if err != nil {
			cmd.PrintErrf("warning: policy store unreadable, showing defaults: %v\n", err)
			snap = nil
		}

		reg := a.registryBuilder().Build(mode, "", snap)

		cmd.Printf("Tools for mode %s:\n", mode)
		for _, entry := range reg.Entries() {
			marker := " "
			if entry.NeedsApproval {
				marker = "!"
			}
			cmd.Printf("  %s %-22s %s\n", marker, entry.Tool.ID, entry.Tool.Description)
		}
		cmd.Println("\n(! = requires approval)")
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolsMode, "mode", "coding", "execution mode (coding, browser, cli, auto)")
	rootCmd.AddCommand(toolsCmd)
}
