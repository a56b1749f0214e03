package core

import (
	"testing"
)

func TestInitWorkspaceSeedsDefaultProfile(t *testing.T) {
	eng, err := InitWorkspace(t.TempDir(), "init-test", "us-east-1", "eastus", "test-pass")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer eng.Close()

	if eng.Workspace.DefaultProfileID == "" {
		t.Fatal("expected a default profile id on the workspace")
	}

	// The profile row must exist and satisfy the workspace foreign key.
	var name string
	err = eng.MetadataDB.QueryRow(
		"SELECT name FROM profiles WHERE id = ?", eng.Workspace.DefaultProfileID,
	).Scan(&name)
	if err != nil {
		t.Fatalf("loading default profile: %v", err)
	}
	if name != DefaultProfileName {
		t.Errorf("expected %q, got %q", DefaultProfileName, name)
	}

	ws, err := LoadWorkspaceRecord(eng.MetadataDB, eng.Workspace.UUID)
	if err != nil {
		t.Fatalf("loading workspace record: %v", err)
	}
	if ws.DefaultProfileID != eng.Workspace.DefaultProfileID {
		t.Errorf("persisted default profile %q, in-memory %q", ws.DefaultProfileID, eng.Workspace.DefaultProfileID)
	}
}
