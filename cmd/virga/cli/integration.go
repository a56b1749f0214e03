package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/lifecycle"
	"github.com/virga-tools/virga/internal/resolve"
)

// RegisterIntegrationCommands adds integration commands.
func RegisterIntegrationCommands(root *cobra.Command) {
	intCmd := &cobra.Command{
		Use:   "integration",
		Short: "Manage AWS SSO and Azure integrations",
	}

	intCmd.AddCommand(newIntegrationListCmd())
	intCmd.AddCommand(newIntegrationCreateCmd())
	intCmd.AddCommand(newIntegrationDeleteCmd())

	root.AddCommand(intCmd)
}

func newIntegrationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List integrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			integrations := wc.store.Integrations()
			if len(integrations) == 0 {
				fmt.Println("No integrations configured.")
				return nil
			}

			sessions := wc.store.Sessions()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tALIAS\tTYPE\tREGION\tSESSIONS\tTOKEN")
			for _, in := range integrations {
				owned := len(resolve.AffectedByIntegrationDeletion(sessions, in.ID))
				token := "(not logged in)"
				if in.AccessTokenExpiration != nil {
					remaining := time.Until(*in.AccessTokenExpiration)
					if remaining <= 0 {
						token = "expired"
					} else {
						token = fmt.Sprintf("%dm", int(remaining.Minutes()))
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					shortID(in.ID), in.Alias, in.Type, in.Region, owned, token)
			}
			w.Flush()
			return nil
		},
	}
}

func newIntegrationCreateCmd() *cobra.Command {
	var (
		intType   string
		alias     string
		portalURL string
		tenantID  string
		region    string
		method    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			var opening core.BrowserOpening
			switch method {
			case "in-app", "":
				opening = core.OpenInApp
			case "in-browser":
				opening = core.OpenInBrowser
			default:
				return fmt.Errorf("unknown --method %q (in-app or in-browser)", method)
			}

			req := lifecycle.IntegrationRequest{
				Type:           core.IntegrationType(intType),
				Alias:          alias,
				PortalURL:      portalURL,
				TenantID:       tenantID,
				Region:         region,
				BrowserOpening: opening,
			}
			in, err := wc.orchestrator.CreateIntegration(req)
			if err != nil {
				return err
			}

			fmt.Printf("Integration created: %s (%s)\n", in.Alias, shortID(in.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&intType, "type", "aws_sso", "Integration type (aws_sso|azure)")
	cmd.Flags().StringVar(&alias, "alias", "", "Integration alias (required)")
	cmd.Flags().StringVar(&portalURL, "portal-url", "", "AWS SSO portal URL")
	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "Azure tenant id")
	cmd.Flags().StringVar(&region, "region", "", "AWS region or Azure location (required)")
	cmd.Flags().StringVar(&method, "method", "in-app", "Browser opening method (in-app|in-browser)")
	cmd.MarkFlagRequired("alias")
	cmd.MarkFlagRequired("region")

	return cmd
}

func newIntegrationDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an integration and its derived sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			report, err := wc.orchestrator.DeleteIntegration(cmd.Context(), args[0], force)
			if cr, ok := core.AsConfirmationRequired(err); ok {
				if !confirmCascade(cr) {
					fmt.Println("Aborted.")
					return nil
				}
				report, err = wc.orchestrator.DeleteIntegration(cmd.Context(), args[0], true)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Integration deleted; %d derived session(s) removed.\n", len(report.Removed))
			reportStopFailures(report.StopFailures)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the cascade confirmation prompt")
	return cmd
}
