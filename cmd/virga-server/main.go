// virga-server is the resident view process. It keeps an in-memory session
// view of one workspace, answers read queries over a unix socket, and
// reloads on refresh RPCs from CLI mutations or on workspace file changes.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/config"
	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/db"
	"github.com/virga-tools/virga/internal/filter"
	"github.com/virga-tools/virga/internal/grpcapi"
	"github.com/virga-tools/virga/internal/repository"
	"github.com/virga-tools/virga/internal/store"
	"github.com/virga-tools/virga/internal/watch"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "virga-server",
		Short:   "virga-server — resident session view server",
		Version: version,
	}

	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the view server for a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsPath, _ := cmd.Flags().GetString("workspace")
			socketPath, _ := cmd.Flags().GetString("socket")
			passphrase, _ := cmd.Flags().GetString("passphrase")
			noWatch, _ := cmd.Flags().GetBool("no-watch")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if wsPath == "" {
				wsPath = cfg.ActiveWorkspace
			}
			if wsPath == "" {
				return fmt.Errorf("--workspace is required when no active workspace is set")
			}
			if socketPath == "" {
				socketPath = cfg.ServerSocket
			}
			if passphrase == "" {
				return fmt.Errorf("--passphrase is required (use env VIRGA_PASSPHRASE for automation)")
			}

			engine, err := core.OpenWorkspace(wsPath, passphrase)
			if err != nil {
				return fmt.Errorf("opening workspace: %w", err)
			}
			defer engine.Close()

			fmt.Printf("Workspace loaded: %s (%s)\n", engine.Workspace.Name, engine.Workspace.UUID[:8])

			repo := repository.New(engine.MetadataDB, engine.Workspace.UUID)
			st, err := store.New(repo, engine.Logger)
			if err != nil {
				return fmt.Errorf("loading session store: %w", err)
			}

			filters := filter.NewEngine(engine.Workspace, repo, st.Sessions(), engine.Logger)
			st.Subscribe(filters)

			server, err := grpcapi.NewServer(socketPath, engine, st, filters)
			if err != nil {
				return fmt.Errorf("starting server: %w", err)
			}

			// Pick up mutations from processes that never send a refresh
			// RPC, e.g. a restored workspace backup.
			if !noWatch {
				w, err := watch.New(
					wsPath,
					[]string{db.MetadataDBFile},
					func() {
						if err := st.Reload(); err != nil {
							engine.Logger.Warn().Err(err).Msg("reload after file change failed")
						}
					},
					engine.Logger,
				)
				if err != nil {
					return fmt.Errorf("watching workspace: %w", err)
				}
				defer w.Close()
				go w.Run()
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				fmt.Println("\nShutting down...")
				server.Stop()
			}()

			fmt.Printf("View server listening on %s\n", socketPath)
			return server.Serve()
		},
	}

	cmd.Flags().String("workspace", "", "Path to workspace directory (default: active workspace)")
	cmd.Flags().String("socket", "", "Unix socket path (default: from config)")
	cmd.Flags().String("passphrase", os.Getenv("VIRGA_PASSPHRASE"), "Vault passphrase")
	cmd.Flags().Bool("no-watch", false, "Disable workspace file watching")

	return cmd
}
