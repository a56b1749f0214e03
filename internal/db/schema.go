// Package db provides SQLite database management for Virga workspaces.
// Two databases per workspace: virga.db (session/profile/integration
// metadata) and virga-audit.db (append-only mutation audit log).
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const (
	MetadataDBFile = "virga.db"
	AuditDBFile    = "virga-audit.db"
)

// MetadataSchema defines all tables for the workspace metadata database.
const MetadataSchema = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

-- Workspace metadata and defaults
CREATE TABLE IF NOT EXISTS workspaces (
    uuid               TEXT PRIMARY KEY,
    name               TEXT NOT NULL UNIQUE,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    default_region     TEXT NOT NULL DEFAULT 'us-east-1',
    default_location   TEXT NOT NULL DEFAULT 'eastus',
    default_profile_id TEXT NOT NULL DEFAULT '',
    pinned             TEXT DEFAULT '[]',  -- JSON array of session ids
    path               TEXT NOT NULL
);

-- Named profiles (AWS CLI profile labels)
CREATE TABLE IF NOT EXISTS profiles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    workspace_uuid  TEXT NOT NULL REFERENCES workspaces(uuid),
    UNIQUE(workspace_uuid, name)
);

-- SAML identity provider URLs, unique by string match
CREATE TABLE IF NOT EXISTS idp_urls (
    id              TEXT PRIMARY KEY,
    url             TEXT NOT NULL,
    workspace_uuid  TEXT NOT NULL REFERENCES workspaces(uuid),
    UNIQUE(workspace_uuid, url)
);

-- SSO integrations (AWS SSO or Azure)
CREATE TABLE IF NOT EXISTS integrations (
    id                      TEXT PRIMARY KEY,
    type                    TEXT NOT NULL,
    alias                   TEXT NOT NULL,
    portal_url              TEXT DEFAULT '',
    tenant_id               TEXT DEFAULT '',
    region                  TEXT NOT NULL,
    browser_opening         TEXT NOT NULL DEFAULT 'in_app',
    access_token_expiration TEXT,
    workspace_uuid          TEXT NOT NULL REFERENCES workspaces(uuid)
);

CREATE INDEX IF NOT EXISTS idx_integrations_workspace ON integrations(workspace_uuid);

-- Session records
CREATE TABLE IF NOT EXISTS sessions (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    type               TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'inactive',
    region             TEXT NOT NULL,
    start_time         TEXT,
    role_arn           TEXT DEFAULT '',
    role_session_name  TEXT DEFAULT '',
    mfa_device         TEXT DEFAULT '',
    profile_id         TEXT DEFAULT '',
    idp_url_id         TEXT DEFAULT '',
    parent_session_id  TEXT DEFAULT '',
    integration_id     TEXT DEFAULT '',
    tenant_id          TEXT DEFAULT '',
    subscription_id    TEXT DEFAULT '',
    created_at         TEXT NOT NULL,
    sort_index         INTEGER NOT NULL,
    workspace_uuid     TEXT NOT NULL REFERENCES workspaces(uuid)
);

CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace_uuid);
CREATE INDEX IF NOT EXISTS idx_sessions_profile ON sessions(workspace_uuid, profile_id);
CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions(workspace_uuid, parent_session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_integration ON sessions(workspace_uuid, integration_id);

-- Saved filter configurations
CREATE TABLE IF NOT EXISTS segments (
    name            TEXT NOT NULL,
    filter_json     TEXT NOT NULL DEFAULT '{}',
    workspace_uuid  TEXT NOT NULL REFERENCES workspaces(uuid),
    PRIMARY KEY (workspace_uuid, name)
);
`

// AuditSchema defines the append-only mutation audit log table.
const AuditSchema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS audit_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp       TEXT NOT NULL,
    workspace_uuid  TEXT NOT NULL,
    entity_id       TEXT DEFAULT '',
    operator        TEXT NOT NULL DEFAULT 'local',
    event_type      TEXT NOT NULL,
    detail          TEXT DEFAULT '{}',
    record_hash     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_workspace ON audit_log(workspace_uuid);
CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_log(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_id);
`

// OpenMetadataDB opens or creates the metadata database for a workspace.
func OpenMetadataDB(workspacePath string) (*sql.DB, error) {
	dbPath := filepath.Join(workspacePath, MetadataDBFile)
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening metadata db: %w", err)
	}

	if _, err := conn.Exec(MetadataSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing metadata schema: %w", err)
	}

	return conn, nil
}

// OpenAuditDB opens or creates the append-only audit database for a workspace.
func OpenAuditDB(workspacePath string) (*sql.DB, error) {
	dbPath := filepath.Join(workspacePath, AuditDBFile)
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}

	if _, err := conn.Exec(AuditSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}

	return conn, nil
}

// EnsureWorkspaceDir creates the workspace directory.
func EnsureWorkspaceDir(path string) error {
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}
