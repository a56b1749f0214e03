package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/db"
	"github.com/virga-tools/virga/internal/repository"
)

const wsUUID = "ws-store-test"

type recordingObserver struct {
	sessionCalls     int
	integrationCalls int
	lastSessions     []core.Session
	lastIntegrations []core.Integration
}

func (o *recordingObserver) SessionsChanged(sessions []core.Session) {
	o.sessionCalls++
	o.lastSessions = sessions
}

func (o *recordingObserver) IntegrationsChanged(integrations []core.Integration) {
	o.integrationCalls++
	o.lastIntegrations = integrations
}

func setupStore(t *testing.T) (*Store, *repository.Repository, *recordingObserver) {
	t.Helper()
	dir := t.TempDir()

	conn, err := db.OpenMetadataDB(dir)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ws := &core.Workspace{UUID: wsUUID, Name: "store-test", Path: dir}
	if err := core.SaveWorkspaceRecord(conn, ws); err != nil {
		t.Fatalf("saving workspace: %v", err)
	}

	repo := repository.New(conn, wsUUID)
	st, err := New(repo, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	obs := &recordingObserver{}
	st.Subscribe(obs)
	return st, repo, obs
}

func newSession(id, name string) core.Session {
	return core.Session{
		ID:            id,
		Name:          name,
		Type:          core.TypeAWSIAMUser,
		Status:        core.StatusInactive,
		Region:        "us-east-1",
		CreatedAt:     time.Now().UTC(),
		WorkspaceUUID: wsUUID,
	}
}

func TestAddSessionNotifiesAfterPersist(t *testing.T) {
	st, repo, obs := setupStore(t)

	if err := st.AddSession(newSession("s1", "alpha")); err != nil {
		t.Fatalf("adding session: %v", err)
	}

	if obs.sessionCalls != 1 {
		t.Errorf("expected 1 notification, got %d", obs.sessionCalls)
	}
	if len(obs.lastSessions) != 1 || obs.lastSessions[0].ID != "s1" {
		t.Errorf("observer got wrong snapshot: %v", obs.lastSessions)
	}

	// Durable before the notification fired.
	persisted, err := repo.ListSessions()
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("expected 1 persisted session, got %d", len(persisted))
	}
}

func TestFailedWriteDoesNotNotify(t *testing.T) {
	st, _, obs := setupStore(t)

	if err := st.AddSession(newSession("s1", "alpha")); err != nil {
		t.Fatalf("adding session: %v", err)
	}
	obs.sessionCalls = 0

	// Duplicate primary key fails at the database.
	if err := st.AddSession(newSession("s1", "dup")); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	if obs.sessionCalls != 0 {
		t.Errorf("failed write must not notify, got %d calls", obs.sessionCalls)
	}
	if got := st.Sessions(); len(got) != 1 || got[0].Name != "alpha" {
		t.Errorf("memory state changed on failed write: %v", got)
	}
}

func TestUpdateUnknownSession(t *testing.T) {
	st, _, obs := setupStore(t)

	err := st.UpdateSession(newSession("missing", "x"))
	if !core.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if obs.sessionCalls != 0 {
		t.Errorf("no-op must not notify, got %d calls", obs.sessionCalls)
	}
}

func TestUpdateSession(t *testing.T) {
	st, _, obs := setupStore(t)

	st.AddSession(newSession("s1", "alpha"))
	obs.sessionCalls = 0

	sess, _ := st.GetSession("s1")
	sess.Status = core.StatusActive
	if err := st.UpdateSession(sess); err != nil {
		t.Fatalf("updating session: %v", err)
	}

	if obs.sessionCalls != 1 {
		t.Errorf("expected 1 notification, got %d", obs.sessionCalls)
	}
	got, _ := st.GetSession("s1")
	if got.Status != core.StatusActive {
		t.Errorf("expected active, got %s", got.Status)
	}
}

func TestRemoveSession(t *testing.T) {
	st, repo, obs := setupStore(t)

	st.AddSession(newSession("s1", "alpha"))
	st.AddSession(newSession("s2", "beta"))
	obs.sessionCalls = 0

	if err := st.RemoveSession("s1"); err != nil {
		t.Fatalf("removing session: %v", err)
	}

	if obs.sessionCalls != 1 {
		t.Errorf("expected 1 notification, got %d", obs.sessionCalls)
	}
	if _, err := st.GetSession("s1"); !core.IsNotFound(err) {
		t.Errorf("expected not-found after removal, got %v", err)
	}
	persisted, _ := repo.ListSessions()
	if len(persisted) != 1 || persisted[0].ID != "s2" {
		t.Errorf("database not consistent after removal: %v", persisted)
	}
}

func TestSessionsReturnsCopy(t *testing.T) {
	st, _, _ := setupStore(t)
	st.AddSession(newSession("s1", "alpha"))

	got := st.Sessions()
	got[0].Name = "mutated"

	if fresh := st.Sessions(); fresh[0].Name != "alpha" {
		t.Error("callers must not be able to mutate store state through the returned slice")
	}
}

func TestBatchFiresOneNotification(t *testing.T) {
	st, _, obs := setupStore(t)

	err := st.Batch(func() error {
		st.AddSession(newSession("s1", "alpha"))
		st.AddSession(newSession("s2", "beta"))
		st.RemoveSession("s1")
		return nil
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if obs.sessionCalls != 1 {
		t.Errorf("expected exactly 1 notification for the batch, got %d", obs.sessionCalls)
	}
	if len(obs.lastSessions) != 1 || obs.lastSessions[0].ID != "s2" {
		t.Errorf("observer should see the final state: %v", obs.lastSessions)
	}
}

func TestBatchWithoutWritesIsSilent(t *testing.T) {
	st, _, obs := setupStore(t)

	if err := st.Batch(func() error { return nil }); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if obs.sessionCalls != 0 || obs.integrationCalls != 0 {
		t.Errorf("empty batch must not notify: %d/%d", obs.sessionCalls, obs.integrationCalls)
	}
}

func TestBatchErrorStillConverges(t *testing.T) {
	st, _, obs := setupStore(t)

	err := st.Batch(func() error {
		st.AddSession(newSession("s1", "alpha"))
		return core.NewConflictError("stop here")
	})
	if !core.IsConflict(err) {
		t.Fatalf("expected the fn error back, got %v", err)
	}

	// The write that happened is visible and announced.
	if obs.sessionCalls != 1 {
		t.Errorf("expected 1 notification, got %d", obs.sessionCalls)
	}
	if len(st.Sessions()) != 1 {
		t.Errorf("expected the successful write to remain")
	}
}

func TestBatchSeparatesSessionAndIntegrationChannels(t *testing.T) {
	st, _, obs := setupStore(t)

	err := st.Batch(func() error {
		st.AddSession(newSession("s1", "alpha"))
		return st.AddIntegration(core.Integration{
			ID: "i1", Type: core.IntegrationAWSSSO, Alias: "org",
			Region: "us-east-1", BrowserOpening: core.OpenInApp, WorkspaceUUID: wsUUID,
		})
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if obs.sessionCalls != 1 || obs.integrationCalls != 1 {
		t.Errorf("expected one notification per channel, got %d/%d", obs.sessionCalls, obs.integrationCalls)
	}
}

func TestIntegrationLifecycle(t *testing.T) {
	st, _, obs := setupStore(t)

	in := core.Integration{
		ID: "i1", Type: core.IntegrationAWSSSO, Alias: "org",
		Region: "us-east-1", BrowserOpening: core.OpenInApp, WorkspaceUUID: wsUUID,
	}
	if err := st.AddIntegration(in); err != nil {
		t.Fatalf("adding integration: %v", err)
	}

	in.Alias = "org-renamed"
	if err := st.UpdateIntegration(in); err != nil {
		t.Fatalf("updating integration: %v", err)
	}
	got, _ := st.GetIntegration("i1")
	if got.Alias != "org-renamed" {
		t.Errorf("expected renamed alias, got %s", got.Alias)
	}

	if err := st.RemoveIntegration("i1"); err != nil {
		t.Fatalf("removing integration: %v", err)
	}
	if obs.integrationCalls != 3 {
		t.Errorf("expected 3 integration notifications, got %d", obs.integrationCalls)
	}
	if obs.sessionCalls != 0 {
		t.Errorf("integration writes must not touch the session channel, got %d", obs.sessionCalls)
	}
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	st, repo, obs := setupStore(t)

	// Simulates another process writing through its own repository handle.
	if err := repo.AddSession(newSession("s1", "external")); err != nil {
		t.Fatalf("external write: %v", err)
	}
	if len(st.Sessions()) != 0 {
		t.Fatal("store should not see the external write before reload")
	}

	if err := st.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(st.Sessions()) != 1 {
		t.Errorf("expected reloaded state, got %d sessions", len(st.Sessions()))
	}
	if obs.sessionCalls != 1 || obs.integrationCalls != 1 {
		t.Errorf("reload should notify both channels, got %d/%d", obs.sessionCalls, obs.integrationCalls)
	}
}
