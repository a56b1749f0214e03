package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/filter"
)

// RegisterSessionCommands adds session lifecycle commands.
func RegisterSessionCommands(root *cobra.Command) {
	sessCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage cloud credential sessions",
	}

	sessCmd.AddCommand(newSessionAddCmd())
	sessCmd.AddCommand(newSessionListCmd())
	sessCmd.AddCommand(newSessionStartCmd())
	sessCmd.AddCommand(newSessionStopCmd())
	sessCmd.AddCommand(newSessionDeleteCmd())
	sessCmd.AddCommand(newSessionPinCmd())
	sessCmd.AddCommand(newSessionUnpinCmd())
	sessCmd.AddCommand(newSessionSetRegionCmd())
	sessCmd.AddCommand(newSessionSetProfileCmd())

	root.AddCommand(sessCmd)
}

func newSessionAddCmd() *cobra.Command {
	var (
		sessionType     string
		name            string
		region          string
		profileName     string
		accessKey       string
		secretKey       string
		mfaDevice       string
		roleARN         string
		idpURL          string
		idpARN          string
		parentID        string
		roleSessionName string
		tenantID        string
		subscriptionID  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new session",
		Long: `Create a new session of the given type.

Types and their required flags:
  aws-iam-user            --name --region --access-key --secret-key
  aws-iam-role-federated  --name --region --role-arn --idp-url --idp-arn
  aws-iam-role-chained    --name --region --role-arn --parent-id
  azure                   --name --region --tenant-id --subscription-id

AWS SSO role sessions are generated by integration sync and cannot be
created here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			profileID, err := resolveProfileNameToID(wc, profileName)
			if err != nil {
				return err
			}

			var spec core.SessionSpec
			switch sessionType {
			case "aws-iam-user":
				spec = core.IAMUserSpec{
					Name:      name,
					Region:    region,
					ProfileID: profileID,
					MFADevice: mfaDevice,
					AccessKey: accessKey,
					SecretKey: secretKey,
				}
			case "aws-iam-role-federated":
				spec = core.FederatedSpec{
					Name:      name,
					Region:    region,
					RoleARN:   roleARN,
					IdpURL:    idpURL,
					IdpARN:    idpARN,
					ProfileID: profileID,
				}
			case "aws-iam-role-chained":
				parent, err := findSession(wc.store, parentID)
				if err != nil {
					return err
				}
				spec = core.ChainedSpec{
					Name:            name,
					Region:          region,
					RoleARN:         roleARN,
					ParentSessionID: parent.ID,
					RoleSessionName: roleSessionName,
					ProfileID:       profileID,
				}
			case "azure":
				spec = core.AzureSpec{
					Name:           name,
					Location:       region,
					TenantID:       tenantID,
					SubscriptionID: subscriptionID,
				}
			default:
				return fmt.Errorf("unknown --type %q", sessionType)
			}

			sess, err := wc.orchestrator.CreateSession(cmd.Context(), spec)
			if err != nil {
				return err
			}

			fmt.Printf("Session created: %s (%s)\n", sess.Name, shortID(sess.ID))
			fmt.Printf("  Type:   %s\n", sess.Type)
			fmt.Printf("  Region: %s\n", sess.Region)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionType, "type", "", "Session type (required)")
	cmd.Flags().StringVar(&name, "name", "", "Session name (required)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region or Azure location (required)")
	cmd.Flags().StringVar(&profileName, "profile", "", "Named profile (defaults to the workspace default)")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "IAM user access key id")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "IAM user secret access key")
	cmd.Flags().StringVar(&mfaDevice, "mfa-device", "", "MFA device ARN")
	cmd.Flags().StringVar(&roleARN, "role-arn", "", "Role ARN to assume")
	cmd.Flags().StringVar(&idpURL, "idp-url", "", "SAML identity provider URL")
	cmd.Flags().StringVar(&idpARN, "idp-arn", "", "SAML identity provider ARN")
	cmd.Flags().StringVar(&parentID, "parent-id", "", "Parent session id or name for chaining")
	cmd.Flags().StringVar(&roleSessionName, "role-session-name", "", "Role session name")
	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "Azure tenant id")
	cmd.Flags().StringVar(&subscriptionID, "subscription-id", "", "Azure subscription id")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		search     string
		provider   string
		regionF    string
		typeF      string
		profileF   string
		pinnedOnly bool
		segment    string
		sortCol    string
		sortDesc   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions through the filter pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			engine := filter.NewEngine(wc.engine.Workspace, wc.repo, wc.store.Sessions(), wc.engine.Logger)
			wc.store.Subscribe(engine)

			if segment != "" {
				if err := engine.ApplySegment(segment); err != nil {
					return err
				}
			} else {
				g := filter.Group{
					Search:     search,
					PinnedOnly: pinnedOnly,
				}
				if provider != "" {
					g.Providers = []core.Provider{core.Provider(provider)}
				}
				if regionF != "" {
					g.Regions = []string{regionF}
				}
				if typeF != "" {
					g.Types = []core.SessionType{core.SessionType(typeF)}
				}
				if profileF != "" {
					p, err := wc.repo.GetProfileByName(profileF)
					if err != nil {
						return err
					}
					g.ProfileIDs = []string{p.ID}
				}
				engine.SetFilters(g)
			}

			if sortCol != "" {
				engine.ToggleSort(filter.Column(sortCol))
				if sortDesc {
					engine.ToggleSort(filter.Column(sortCol))
				}
			}

			sessions, err := engine.Visible()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions match.")
				return nil
			}

			printSessionTable(sessions, wc.engine.Workspace)
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Free-text filter")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider filter (aws|azure)")
	cmd.Flags().StringVar(&regionF, "region", "", "Region filter")
	cmd.Flags().StringVar(&typeF, "session-type", "", "Session type filter")
	cmd.Flags().StringVar(&profileF, "profile", "", "Named profile filter")
	cmd.Flags().BoolVar(&pinnedOnly, "pinned", false, "Only pinned sessions")
	cmd.Flags().StringVar(&segment, "segment", "", "Apply a saved segment instead of flags")
	cmd.Flags().StringVar(&sortCol, "sort", "", "Sort column (name|provider|type|profile|region)")
	cmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")

	return cmd
}

func printSessionTable(sessions []core.Session, ws *core.Workspace) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tREGION\tSTATUS\tSTARTED\tPIN")
	for _, s := range sessions {
		started := "-"
		if s.StartDateTime != nil {
			started = s.StartDateTime.Local().Format(time.DateTime)
		}
		pin := ""
		if ws.IsPinned(s.ID) {
			pin = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(s.ID), s.Name, s.Type, s.Region, s.Status, started, pin)
	}
	w.Flush()
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id|name>",
		Short: "Start a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.StartSession(cmd.Context(), sess.ID); err != nil {
				return err
			}

			fmt.Printf("Session started: %s (%s)\n", sess.Name, shortID(sess.ID))
			return nil
		},
	}
}

func newSessionStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id|name>",
		Short: "Stop a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.StopSession(cmd.Context(), sess.ID); err != nil {
				return err
			}

			fmt.Printf("Session stopped: %s (%s)\n", sess.Name, shortID(sess.ID))
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a session and its chained descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}

			report, err := wc.orchestrator.DeleteSession(cmd.Context(), sess.ID, force)
			if cr, ok := core.AsConfirmationRequired(err); ok {
				if !confirmCascade(cr) {
					fmt.Println("Aborted.")
					return nil
				}
				report, err = wc.orchestrator.DeleteSession(cmd.Context(), sess.ID, true)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Deleted %d session(s).\n", len(report.Removed))
			reportStopFailures(report.StopFailures)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the cascade confirmation prompt")
	return cmd
}

func reportStopFailures(failures map[string]error) {
	for id, err := range failures {
		fmt.Fprintf(os.Stderr, "warning: stopping %s failed: %v\n", shortID(id), err)
	}
}

func newSessionPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id|name>",
		Short: "Pin a session to the top of the visible list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.PinSession(sess.ID); err != nil {
				return err
			}

			fmt.Printf("Session pinned: %s\n", sess.Name)
			return nil
		},
	}
}

func newSessionUnpinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpin <id|name>",
		Short: "Unpin a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.UnpinSession(sess.ID); err != nil {
				return err
			}

			fmt.Printf("Session unpinned: %s\n", sess.Name)
			return nil
		},
	}
}

func newSessionSetRegionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-region <id|name> <region>",
		Short: "Change a session's region, restarting it if active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.ChangeSessionRegion(cmd.Context(), sess.ID, args[1]); err != nil {
				return err
			}

			fmt.Printf("Session %s region set to %s\n", sess.Name, args[1])
			return nil
		},
	}
}

func newSessionSetProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-profile <id|name> <profile-name>",
		Short: "Reassign a session's named profile, creating it if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			sess, err := findSession(wc.store, args[0])
			if err != nil {
				return err
			}
			if err := wc.orchestrator.ChangeSessionProfile(cmd.Context(), sess.ID, args[1]); err != nil {
				return err
			}

			fmt.Printf("Session %s assigned to profile %q\n", sess.Name, args[1])
			return nil
		},
	}
}
