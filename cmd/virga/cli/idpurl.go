package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/resolve"
)

// RegisterIdpURLCommands adds identity provider URL commands.
func RegisterIdpURLCommands(root *cobra.Command) {
	idpCmd := &cobra.Command{
		Use:   "idp-url",
		Short: "Manage SAML identity provider URLs",
	}

	idpCmd.AddCommand(newIdpURLListCmd())
	idpCmd.AddCommand(newIdpURLCreateCmd())
	idpCmd.AddCommand(newIdpURLDeleteCmd())

	root.AddCommand(idpCmd)
}

func newIdpURLListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identity provider URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			urls, err := wc.repo.ListIdpURLs()
			if err != nil {
				return err
			}

			sessions := wc.store.Sessions()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tURL\tSESSIONS")
			for _, u := range urls {
				used := len(resolve.AffectedByIdpURLDeletion(sessions, u.ID))
				fmt.Fprintf(w, "%s\t%s\t%d\n", shortID(u.ID), u.URL, used)
			}
			w.Flush()
			return nil
		},
	}
}

func newIdpURLCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <url>",
		Short: "Register an identity provider URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			u, err := wc.orchestrator.CreateIdpURL(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Idp-url registered: %s (%s)\n", u.URL, shortID(u.ID))
			return nil
		},
	}
}

func newIdpURLDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an idp-url and every federated session bound to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			report, err := wc.orchestrator.DeleteIdpURL(cmd.Context(), args[0], force)
			if cr, ok := core.AsConfirmationRequired(err); ok {
				if !confirmCascade(cr) {
					fmt.Println("Aborted.")
					return nil
				}
				report, err = wc.orchestrator.DeleteIdpURL(cmd.Context(), args[0], true)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Idp-url deleted; %d session(s) removed.\n", len(report.Removed))
			reportStopFailures(report.StopFailures)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the cascade confirmation prompt")
	return cmd
}
