// virga — cloud credential session manager CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/cmd/virga/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "virga",
		Short: "virga — cloud credential session manager",
		Long: `Virga manages AWS and Azure credential sessions: IAM users, federated
and chained roles, SSO integrations, named profiles and identity provider
URLs, all persisted in an encrypted per-workspace store.`,
		Version:      version,
		SilenceUsage: true,
	}

	cli.RegisterWorkspaceCommands(rootCmd)
	cli.RegisterSessionCommands(rootCmd)
	cli.RegisterProfileCommands(rootCmd)
	cli.RegisterIdpURLCommands(rootCmd)
	cli.RegisterIntegrationCommands(rootCmd)
	cli.RegisterRegionCommands(rootCmd)
	cli.RegisterSegmentCommands(rootCmd)
	cli.RegisterAuditCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
