package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/resolve"
)

// RegisterProfileCommands adds named profile commands.
func RegisterProfileCommands(root *cobra.Command) {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named profiles",
	}

	profileCmd.AddCommand(newProfileListCmd())
	profileCmd.AddCommand(newProfileCreateCmd())
	profileCmd.AddCommand(newProfileDeleteCmd())

	root.AddCommand(profileCmd)
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List named profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			profiles, err := wc.repo.ListProfiles()
			if err != nil {
				return err
			}

			sessions := wc.store.Sessions()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSESSIONS")
			for _, p := range profiles {
				used := len(resolve.AffectedByProfileDeletion(sessions, p.ID))
				name := p.Name
				if p.ID == wc.engine.Workspace.DefaultProfileID {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", shortID(p.ID), name, used)
			}
			w.Flush()
			return nil
		},
	}
}

func newProfileCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a named profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			p, err := wc.orchestrator.CreateProfile(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Profile created: %s (%s)\n", p.Name, shortID(p.ID))
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile, reassigning its sessions to the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			p, err := wc.repo.GetProfileByName(args[0])
			if err != nil {
				return err
			}

			report, err := wc.orchestrator.DeleteProfile(cmd.Context(), p.ID, force)
			if cr, ok := core.AsConfirmationRequired(err); ok {
				if !confirmCascade(cr) {
					fmt.Println("Aborted.")
					return nil
				}
				report, err = wc.orchestrator.DeleteProfile(cmd.Context(), p.ID, true)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Profile %q deleted; %d session(s) reassigned to the default profile.\n",
				args[0], len(report.Reassigned))
			reportStopFailures(report.StopFailures)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the cascade confirmation prompt")
	return cmd
}
