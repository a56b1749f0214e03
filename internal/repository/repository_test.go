package repository

import (
	"testing"
	"time"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/db"
)

const wsUUID = "ws-repo-test"

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()

	conn, err := db.OpenMetadataDB(dir)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ws := &core.Workspace{UUID: wsUUID, Name: "repo-test", Path: dir}
	if err := core.SaveWorkspaceRecord(conn, ws); err != nil {
		t.Fatalf("saving workspace: %v", err)
	}
	return New(conn, wsUUID)
}

func testSession(id, name string) core.Session {
	return core.Session{
		ID:            id,
		Name:          name,
		Type:          core.TypeAWSIAMUser,
		Status:        core.StatusInactive,
		Region:        "us-east-1",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		WorkspaceUUID: wsUUID,
	}
}

func TestSessionCRUD(t *testing.T) {
	repo := setupRepo(t)

	s := testSession("s1", "alpha")
	s.RoleARN = "arn:aws:iam::1:role/Dev"
	if err := repo.AddSession(s); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := repo.GetSession("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "alpha" || got.RoleARN != s.RoleARN || got.Type != core.TypeAWSIAMUser {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	now := time.Now().UTC().Truncate(time.Second)
	got.Status = core.StatusActive
	got.StartDateTime = &now
	if err := repo.UpdateSession(*got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := repo.GetSession("s1")
	if updated.Status != core.StatusActive || updated.StartDateTime == nil {
		t.Errorf("update not persisted: %+v", updated)
	}
	if !updated.StartDateTime.Equal(now) {
		t.Errorf("start time mismatch: %v vs %v", updated.StartDateTime, now)
	}

	if err := repo.DeleteSession("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetSession("s1"); !core.IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestSessionsKeepInsertionOrder(t *testing.T) {
	repo := setupRepo(t)

	for _, id := range []string{"s3", "s1", "s2"} {
		if err := repo.AddSession(testSession(id, "name-"+id)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	sessions, err := repo.ListSessions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"s3", "s1", "s2"}
	for i, id := range want {
		if sessions[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, sessions[i].ID)
		}
	}
}

func TestUpdateUnknownSession(t *testing.T) {
	repo := setupRepo(t)
	if err := repo.UpdateSession(testSession("missing", "x")); !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
	if err := repo.DeleteSession("missing"); !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestProfileLookupByName(t *testing.T) {
	repo := setupRepo(t)

	p := core.NamedProfile{ID: "p1", Name: "staging", WorkspaceUUID: wsUUID}
	if err := repo.AddProfile(p); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := repo.GetProfileByName("staging")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("unexpected id: %s", got.ID)
	}

	if _, err := repo.GetProfileByName("missing"); !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestListProfilesDefaultFirst(t *testing.T) {
	repo := setupRepo(t)

	repo.AddProfile(core.NamedProfile{ID: "p1", Name: "alpha", WorkspaceUUID: wsUUID})
	repo.AddProfile(core.NamedProfile{ID: "p2", Name: core.DefaultProfileName, WorkspaceUUID: wsUUID})

	profiles, err := repo.ListProfiles()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 2 || profiles[0].Name != core.DefaultProfileName {
		t.Errorf("expected default profile first, got %v", profiles)
	}
}

func TestIdpURLLookupByURL(t *testing.T) {
	repo := setupRepo(t)

	u := core.IdpURL{ID: "u1", URL: "https://idp.example.com/saml", WorkspaceUUID: wsUUID}
	if err := repo.AddIdpURL(u); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := repo.GetIdpURLByURL("https://idp.example.com/saml")
	if err != nil {
		t.Fatalf("get by url: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("unexpected id: %s", got.ID)
	}

	if err := repo.DeleteIdpURL("u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetIdpURL("u1"); !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestIntegrationRoundTrip(t *testing.T) {
	repo := setupRepo(t)

	exp := time.Now().UTC().Add(8 * time.Hour).Truncate(time.Second)
	in := core.Integration{
		ID: "i1", Type: core.IntegrationAWSSSO, Alias: "org",
		PortalURL: "https://x.awsapps.com/start", Region: "us-east-1",
		BrowserOpening: core.OpenInApp, AccessTokenExpiration: &exp,
		WorkspaceUUID: wsUUID,
	}
	if err := repo.AddIntegration(in); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := repo.GetIntegration("i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Alias != "org" || got.AccessTokenExpiration == nil || !got.AccessTokenExpiration.Equal(exp) {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestSegments(t *testing.T) {
	repo := setupRepo(t)

	if err := repo.SaveSegment("eu", []byte(`{"regions":["eu-west-1"]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Same name replaces.
	if err := repo.SaveSegment("eu", []byte(`{"regions":["eu-central-1"]}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, err := repo.ListSegments()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(rows))
	}
	got, err := repo.GetSegment("eu")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.FilterJSON) != `{"regions":["eu-central-1"]}` {
		t.Errorf("unexpected payload: %s", got.FilterJSON)
	}

	if err := repo.SaveSegment("bad", []byte("not json")); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := repo.DeleteSegment("missing"); !core.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestRowsAreScopedToWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := db.OpenMetadataDB(dir)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer conn.Close()

	for _, ws := range []string{"ws-a", "ws-b"} {
		if err := core.SaveWorkspaceRecord(conn, &core.Workspace{UUID: ws, Name: ws, Path: dir}); err != nil {
			t.Fatalf("saving workspace %s: %v", ws, err)
		}
	}

	repoA := New(conn, "ws-a")
	repoB := New(conn, "ws-b")

	s := testSession("s1", "alpha")
	s.WorkspaceUUID = "ws-a"
	if err := repoA.AddSession(s); err != nil {
		t.Fatalf("add: %v", err)
	}

	if sessions, _ := repoB.ListSessions(); len(sessions) != 0 {
		t.Errorf("ws-b must not see ws-a rows, got %d", len(sessions))
	}
	if _, err := repoB.GetSession("s1"); !core.IsNotFound(err) {
		t.Errorf("expected not-found across workspaces, got %v", err)
	}
}
