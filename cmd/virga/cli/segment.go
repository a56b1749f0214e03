package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/filter"
)

// RegisterSegmentCommands adds saved-segment commands.
func RegisterSegmentCommands(root *cobra.Command) {
	segCmd := &cobra.Command{
		Use:   "segment",
		Short: "Manage saved filter segments",
	}

	segCmd.AddCommand(newSegmentListCmd())
	segCmd.AddCommand(newSegmentSaveCmd())
	segCmd.AddCommand(newSegmentApplyCmd())
	segCmd.AddCommand(newSegmentDeleteCmd())

	root.AddCommand(segCmd)
}

func newFilterEngine(wc *workspaceContext) *filter.Engine {
	engine := filter.NewEngine(wc.engine.Workspace, wc.repo, wc.store.Sessions(), wc.engine.Logger)
	wc.store.Subscribe(engine)
	return engine
}

func newSegmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			segments, err := newFilterEngine(wc).Segments()
			if err != nil {
				return err
			}
			if len(segments) == 0 {
				fmt.Println("No segments saved.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCRITERIA")
			for _, s := range segments {
				fmt.Fprintf(w, "%s\t%s\n", s.Name, describeGroup(s.Filters))
			}
			w.Flush()
			return nil
		},
	}
}

func describeGroup(g filter.Group) string {
	var parts []string
	if g.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", g.Search))
	}
	for _, p := range g.Providers {
		parts = append(parts, "provider="+string(p))
	}
	for _, t := range g.Types {
		parts = append(parts, "type="+string(t))
	}
	for _, r := range g.Regions {
		parts = append(parts, "region="+r)
	}
	if len(g.ProfileIDs) > 0 {
		parts = append(parts, fmt.Sprintf("profiles=%d", len(g.ProfileIDs)))
	}
	if len(g.IntegrationIDs) > 0 {
		parts = append(parts, fmt.Sprintf("integrations=%d", len(g.IntegrationIDs)))
	}
	if g.PinnedOnly {
		parts = append(parts, "pinned")
	}
	if len(parts) == 0 {
		return "(match all)"
	}
	return strings.Join(parts, " ")
}

func newSegmentSaveCmd() *cobra.Command {
	var (
		search     string
		provider   string
		regionF    string
		typeF      string
		pinnedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the given filter criteria as a named segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			g := filter.Group{Search: search, PinnedOnly: pinnedOnly}
			if provider != "" {
				g.Providers = []core.Provider{core.Provider(provider)}
			}
			if regionF != "" {
				g.Regions = []string{regionF}
			}
			if typeF != "" {
				g.Types = []core.SessionType{core.SessionType(typeF)}
			}

			engine := newFilterEngine(wc)
			engine.SetFilters(g)
			if err := engine.SaveSegment(args[0]); err != nil {
				return err
			}

			fmt.Printf("Segment saved: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Free-text filter")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider filter (aws|azure)")
	cmd.Flags().StringVar(&regionF, "region", "", "Region filter")
	cmd.Flags().StringVar(&typeF, "session-type", "", "Session type filter")
	cmd.Flags().BoolVar(&pinnedOnly, "pinned", false, "Only pinned sessions")

	return cmd
}

func newSegmentApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <name>",
		Short: "Show the session list through a saved segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			engine := newFilterEngine(wc)
			if err := engine.ApplySegment(args[0]); err != nil {
				return err
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
}

func newSegmentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc, err := loadWorkspace()
			if err != nil {
				return err
			}
			defer wc.Close()

			if err := newFilterEngine(wc).DeleteSegment(args[0]); err != nil {
				return err
			}

			fmt.Printf("Segment deleted: %s\n", args[0])
			return nil
		},
	}
}
