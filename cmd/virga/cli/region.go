package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RegisterRegionCommands adds region commands.
func RegisterRegionCommands(root *cobra.Command) {
	regionCmd := &cobra.Command{
		Use:   "region",
		Short: "Manage the workspace default region",
	}

	regionCmd.AddCommand(newRegionSetDefaultCmd())
	root.AddCommand(regionCmd)
}

func newRegionSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <aws-region>",
		Short: "Set the workspace default AWS region for new sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			if err := wc.orchestrator.ChangeDefaultRegion(args[0]); err != nil {
				return err
			}

			fmt.Printf("Default region set to %s\n", args[0])
			return nil
		},
	}
}
