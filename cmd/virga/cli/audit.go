package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/audit"
)

// RegisterAuditCommands adds audit log commands.
func RegisterAuditCommands(root *cobra.Command) {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the workspace audit log",
	}

	auditCmd.AddCommand(newAuditVerifyCmd())
	root.AddCommand(auditCmd)
}

func newAuditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit log hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			valid, count, err := audit.Verify(wc.engine.AuditDB, wc.engine.Workspace.UUID)
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("audit chain verification FAILED after %d record(s)", count)
			}

			fmt.Printf("Audit chain intact: %d record(s) verified.\n", count)
			return nil
		},
	}
}
