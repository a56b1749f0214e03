package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/config"
	"github.com/virga-tools/virga/internal/core"
)

// RegisterWorkspaceCommands adds workspace management commands.
func RegisterWorkspaceCommands(root *cobra.Command) {
	wsCmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}

	wsCmd.AddCommand(newWorkspaceInitCmd())
	wsCmd.AddCommand(newWorkspaceListCmd())
	wsCmd.AddCommand(newWorkspaceUseCmd())
	wsCmd.AddCommand(newWorkspaceInfoCmd())

	root.AddCommand(wsCmd)
}

func newWorkspaceInitCmd() *cobra.Command {
	var (
		name     string
		region   string
		location string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new workspace and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if region == "" {
				region = cfg.DefaultRegion
			}
			if location == "" {
				location = cfg.DefaultLocation
			}

			passphrase, err := promptPassphrase("Enter vault passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if passphrase != confirm {
				return fmt.Errorf("passphrases do not match")
			}
			if len(passphrase) < 8 {
				return fmt.Errorf("passphrase must be at least 8 characters")
			}

			engine, err := core.InitWorkspace(cfg.WorkspacesDir, name, region, location, passphrase)
			if err != nil {
				return fmt.Errorf("creating workspace: %w", err)
			}
			defer engine.Close()

			cfg.ActiveWorkspace = engine.Workspace.Path
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Printf("Workspace created.\n")
			fmt.Printf("  UUID:   %s\n", engine.Workspace.UUID)
			fmt.Printf("  Name:   %s\n", engine.Workspace.Name)
			fmt.Printf("  Path:   %s\n", engine.Workspace.Path)
			fmt.Printf("  Region: %s\n", engine.Workspace.DefaultRegion)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Workspace name (required)")
	cmd.Flags().StringVar(&region, "region", "", "Default AWS region")
	cmd.Flags().StringVar(&location, "location", "", "Default Azure location")

	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.WorkspacesDir)
			if os.IsNotExist(err) {
				fmt.Println("No workspaces yet.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading workspaces directory: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UUID\tPATH\tACTIVE")
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				path := filepath.Join(cfg.WorkspacesDir, entry.Name())
				active := ""
				if path == cfg.ActiveWorkspace {
					active = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", shortID(entry.Name()), path, active)
			}
			w.Flush()
			return nil
		},
	}
}

func newWorkspaceUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <uuid-or-path>",
		Short: "Make a workspace the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			path := args[0]
			if _, err := os.Stat(path); err != nil {
				// Not a path; try a directory under the workspaces dir,
				// matching on uuid prefix.
				entries, rerr := os.ReadDir(cfg.WorkspacesDir)
				if rerr != nil {
					return fmt.Errorf("workspace not found: %s", args[0])
				}
				path = ""
				for _, entry := range entries {
					if entry.IsDir() && len(entry.Name()) >= len(args[0]) &&
						entry.Name()[:len(args[0])] == args[0] {
						path = filepath.Join(cfg.WorkspacesDir, entry.Name())
						break
					}
				}
				if path == "" {
					return fmt.Errorf("workspace not found: %s", args[0])
				}
			}

			cfg.ActiveWorkspace = path
			if err := config.Save(cfg); err != nil {
				return err
			}

			fmt.Printf("Active workspace: %s\n", path)
			return nil
		},
	}
}

func newWorkspaceInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the active workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			ws := wc.engine.Workspace
			fmt.Printf("UUID:             %s\n", ws.UUID)
			fmt.Printf("Name:             %s\n", ws.Name)
			fmt.Printf("Path:             %s\n", ws.Path)
			fmt.Printf("Created:          %s\n", ws.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Default region:   %s\n", ws.DefaultRegion)
			fmt.Printf("Default location: %s\n", ws.DefaultLocation)
			fmt.Printf("Sessions:         %d\n", len(wc.store.Sessions()))
			fmt.Printf("Integrations:     %d\n", len(wc.store.Integrations()))
			fmt.Printf("Pinned:           %d\n", len(ws.Pinned))
			return nil
		},
	}
}
