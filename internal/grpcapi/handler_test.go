package grpcapi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/db"
	"github.com/virga-tools/virga/internal/filter"
	"github.com/virga-tools/virga/internal/repository"
	"github.com/virga-tools/virga/internal/store"
)

const wsUUID = "ws-rpc-test"

type rpcFixture struct {
	handler *Handler
	store   *store.Store
	repo    *repository.Repository
	ws      *core.Workspace
}

func setupHandler(t *testing.T) *rpcFixture {
	t.Helper()
	dir := t.TempDir()

	metaDB, err := db.OpenMetadataDB(dir)
	if err != nil {
		t.Fatalf("opening metadata db: %v", err)
	}
	t.Cleanup(func() { metaDB.Close() })

	auditDB, err := db.OpenAuditDB(dir)
	if err != nil {
		t.Fatalf("opening audit db: %v", err)
	}
	t.Cleanup(func() { auditDB.Close() })

	ws := &core.Workspace{UUID: wsUUID, Name: "rpc-test", Path: dir, DefaultRegion: "us-east-1"}
	if err := core.SaveWorkspaceRecord(metaDB, ws); err != nil {
		t.Fatalf("saving workspace: %v", err)
	}

	repo := repository.New(metaDB, wsUUID)
	st, err := store.New(repo, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	filters := filter.NewEngine(ws, repo, st.Sessions(), zerolog.Nop())
	st.Subscribe(filters)

	engine := &core.Engine{
		Workspace:  ws,
		MetadataDB: metaDB,
		AuditDB:    auditDB,
		Logger:     zerolog.Nop(),
	}
	svc := NewService(engine, st, filters)
	return &rpcFixture{handler: NewHandler(svc), store: st, repo: repo, ws: ws}
}

func (f *rpcFixture) call(t *testing.T, method string, params any, out any) *RPCResponse {
	t.Helper()
	req := &RPCRequest{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshaling params: %v", err)
		}
		req.Params = raw
	}

	resp := f.handler.Handle(context.Background(), req)
	if out != nil && resp.Error == "" {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			t.Fatalf("unmarshaling result: %v", err)
		}
	}
	return resp
}

func (f *rpcFixture) addSession(t *testing.T, id, name, region string) {
	t.Helper()
	err := f.store.AddSession(core.Session{
		ID: id, Name: name, Type: core.TypeAWSIAMUser,
		Status: core.StatusInactive, Region: region,
		CreatedAt: time.Now().UTC(), WorkspaceUUID: wsUUID,
	})
	if err != nil {
		t.Fatalf("adding session: %v", err)
	}
}

func TestUnknownMethod(t *testing.T) {
	f := setupHandler(t)
	resp := f.call(t, "sessions.explode", nil, nil)
	if resp.Error == "" {
		t.Error("expected an error for an unknown method")
	}
}

func TestGetWorkspace(t *testing.T) {
	f := setupHandler(t)

	var info WorkspaceInfo
	resp := f.call(t, "workspace.get", nil, &info)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if info.UUID != wsUUID || info.DefaultRegion != "us-east-1" {
		t.Errorf("unexpected workspace: %+v", info)
	}
}

func TestListSessions(t *testing.T) {
	f := setupHandler(t)
	f.addSession(t, "s1", "alpha", "us-east-1")
	f.addSession(t, "s2", "beta", "eu-west-1")

	var sessions []SessionInfo
	resp := f.call(t, "sessions.list", nil, &sessions)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestApplyFilters(t *testing.T) {
	f := setupHandler(t)
	f.addSession(t, "s1", "alpha", "us-east-1")
	f.addSession(t, "s2", "beta", "eu-west-1")

	var visible []SessionInfo
	resp := f.call(t, "filters.apply", filter.Group{Regions: []string{"eu-west-1"}}, &visible)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if len(visible) != 1 || visible[0].ID != "s2" {
		t.Errorf("expected only the eu-west session, got %v", visible)
	}
}

func TestToggleSort(t *testing.T) {
	f := setupHandler(t)
	f.addSession(t, "s1", "bravo", "us-east-1")
	f.addSession(t, "s2", "alpha", "us-east-1")

	var visible []SessionInfo
	resp := f.call(t, "filters.sort", sortParam{Column: "name"}, &visible)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if len(visible) != 2 || visible[0].Name != "alpha" {
		t.Errorf("expected name-ascending order, got %v", visible)
	}
}

func TestApplySegment(t *testing.T) {
	f := setupHandler(t)
	f.addSession(t, "s1", "alpha", "us-east-1")
	f.addSession(t, "s2", "beta", "eu-west-1")

	if err := f.repo.SaveSegment("eu", []byte(`{"regions":["eu-west-1"]}`)); err != nil {
		t.Fatalf("saving segment: %v", err)
	}

	var visible []SessionInfo
	resp := f.call(t, "segments.apply", nameParam{Name: "eu"}, &visible)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if len(visible) != 1 || visible[0].ID != "s2" {
		t.Errorf("expected the segment's view, got %v", visible)
	}

	resp = f.call(t, "segments.apply", nameParam{Name: "missing"}, nil)
	if resp.Error == "" {
		t.Error("expected an error for an unknown segment")
	}
}

func TestRefreshPicksUpExternalWrites(t *testing.T) {
	f := setupHandler(t)

	// A CLI process writes through its own connection; the view only sees
	// it after the refresh RPC.
	err := f.repo.AddSession(core.Session{
		ID: "s1", Name: "external", Type: core.TypeAWSIAMUser,
		Status: core.StatusInactive, Region: "us-east-1",
		CreatedAt: time.Now().UTC(), WorkspaceUUID: wsUUID,
	})
	if err != nil {
		t.Fatalf("external write: %v", err)
	}

	var before []SessionInfo
	f.call(t, "sessions.list", nil, &before)
	if len(before) != 0 {
		t.Fatal("view should be stale before refresh")
	}

	resp := f.call(t, "sessions.refresh", nil, nil)
	if resp.Error != "" {
		t.Fatalf("refresh error: %s", resp.Error)
	}

	var after []SessionInfo
	f.call(t, "sessions.list", nil, &after)
	if len(after) != 1 || after[0].Name != "external" {
		t.Errorf("expected the external session after refresh, got %v", after)
	}
}

func TestVisibleSessionsMarksPinned(t *testing.T) {
	f := setupHandler(t)
	f.addSession(t, "s1", "alpha", "us-east-1")
	f.addSession(t, "s2", "beta", "us-east-1")
	f.ws.Pinned = []string{"s2"}

	var visible []SessionInfo
	resp := f.call(t, "sessions.visible", nil, &visible)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if len(visible) != 2 || visible[0].ID != "s2" || !visible[0].Pinned {
		t.Errorf("expected the pinned session hoisted and flagged, got %v", visible)
	}
}

func TestVerifyAuditOverEmptyChain(t *testing.T) {
	f := setupHandler(t)

	var result map[string]any
	resp := f.call(t, "audit.verify", nil, &result)
	if resp.Error != "" {
		t.Fatalf("rpc error: %s", resp.Error)
	}
	if valid, ok := result["valid"].(bool); !ok || !valid {
		t.Errorf("expected a valid empty chain, got %v", result)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	req := &RPCRequest{Method: "sessions.list"}

	data, err := c.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded RPCRequest
	if err := c.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Method != "sessions.list" {
		t.Errorf("unexpected method: %s", decoded.Method)
	}
	if c.Name() != CodecName {
		t.Errorf("unexpected codec name: %s", c.Name())
	}
}
