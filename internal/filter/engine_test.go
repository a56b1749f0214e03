package filter

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/db"
	"github.com/virga-tools/virga/internal/repository"
)

const wsUUID = "ws-filter-test"

func setupEngine(t *testing.T, sessions []core.Session) (*Engine, *repository.Repository, *core.Workspace) {
	t.Helper()
	dir := t.TempDir()

	conn, err := db.OpenMetadataDB(dir)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ws := &core.Workspace{UUID: wsUUID, Name: "filter-test", Path: dir}
	if err := core.SaveWorkspaceRecord(conn, ws); err != nil {
		t.Fatalf("saving workspace: %v", err)
	}

	repo := repository.New(conn, wsUUID)
	return NewEngine(ws, repo, sessions, zerolog.Nop()), repo, ws
}

func TestSetFiltersClearsActiveSegment(t *testing.T) {
	e, _, _ := setupEngine(t, nil)

	e.SetFilters(Group{Search: "prod"})
	if err := e.SaveSegment("prod-only"); err != nil {
		t.Fatalf("saving segment: %v", err)
	}
	if e.ActiveSegment() != "prod-only" {
		t.Fatalf("expected active segment, got %q", e.ActiveSegment())
	}

	e.SetFilters(Group{Search: "dev"})
	if e.ActiveSegment() != "" {
		t.Errorf("diverging filters should drop the segment, got %q", e.ActiveSegment())
	}
}

func TestApplySegmentReplacesAllCriteria(t *testing.T) {
	e, _, _ := setupEngine(t, nil)

	e.SetFilters(Group{Regions: []string{"eu-west-1"}})
	if err := e.SaveSegment("eu"); err != nil {
		t.Fatalf("saving segment: %v", err)
	}

	// Different criteria, then the segment snaps everything back.
	e.SetFilters(Group{Search: "prod", Providers: []core.Provider{core.ProviderAzure}})
	if err := e.ApplySegment("eu"); err != nil {
		t.Fatalf("applying segment: %v", err)
	}

	g := e.Filters()
	if g.Search != "" || len(g.Providers) != 0 {
		t.Error("previous criteria leaked through the segment")
	}
	if len(g.Regions) != 1 || g.Regions[0] != "eu-west-1" {
		t.Errorf("expected the saved criteria, got %+v", g)
	}
	if e.ActiveSegment() != "eu" {
		t.Errorf("expected active segment eu, got %q", e.ActiveSegment())
	}
}

func TestApplyUnknownSegment(t *testing.T) {
	e, _, _ := setupEngine(t, nil)
	err := e.ApplySegment("missing")
	if !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestDeleteSegmentKeepsCriteria(t *testing.T) {
	e, _, _ := setupEngine(t, nil)

	e.SetFilters(Group{Search: "prod"})
	if err := e.SaveSegment("prod"); err != nil {
		t.Fatalf("saving segment: %v", err)
	}
	if err := e.DeleteSegment("prod"); err != nil {
		t.Fatalf("deleting segment: %v", err)
	}

	if e.ActiveSegment() != "" {
		t.Error("deleted segment should no longer be active")
	}
	if e.Filters().Search != "prod" {
		t.Error("active criteria must survive segment deletion")
	}

	if err := e.DeleteSegment("prod"); !core.IsNotFound(err) {
		t.Errorf("expected not-found on double delete, got %v", err)
	}
}

func TestSegmentsRoundTrip(t *testing.T) {
	e, _, _ := setupEngine(t, nil)

	e.SetFilters(Group{Types: []core.SessionType{core.TypeAzure}, PinnedOnly: true})
	if err := e.SaveSegment("azure-pinned"); err != nil {
		t.Fatalf("saving segment: %v", err)
	}

	segments, err := e.Segments()
	if err != nil {
		t.Fatalf("listing segments: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	got := segments[0]
	if got.Name != "azure-pinned" || !got.Filters.PinnedOnly || len(got.Filters.Types) != 1 {
		t.Errorf("segment did not round-trip: %+v", got)
	}
}

func TestVisibleUsesWorkspacePins(t *testing.T) {
	sessions := []core.Session{
		mkSession("s1", "alpha", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s2", "beta", core.TypeAWSIAMUser, "us-east-1"),
	}
	e, _, ws := setupEngine(t, sessions)
	ws.Pinned = []string{"s2"}

	visible, err := e.Visible()
	if err != nil {
		t.Fatalf("computing visible list: %v", err)
	}
	if len(visible) != 2 || visible[0].ID != "s2" {
		t.Errorf("pinned session should be hoisted, got %v", visible)
	}
}

func TestSessionsChangedReplacesSnapshot(t *testing.T) {
	e, _, _ := setupEngine(t, []core.Session{mkSession("s1", "alpha", core.TypeAWSIAMUser, "us-east-1")})

	e.SessionsChanged([]core.Session{
		mkSession("s2", "beta", core.TypeAWSIAMUser, "us-east-1"),
		mkSession("s3", "gamma", core.TypeAWSIAMUser, "us-east-1"),
	})

	visible, err := e.Visible()
	if err != nil {
		t.Fatalf("computing visible list: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("expected the new snapshot, got %d sessions", len(visible))
	}
}
