// workspace.go implements workspace lifecycle operations.
package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Workspace is the top-level container for a set of sessions, profiles,
// idp-urls and integrations sharing one persisted database.
type Workspace struct {
	UUID             string    `json:"uuid"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	DefaultRegion    string    `json:"default_region"`
	DefaultLocation  string    `json:"default_location"`
	DefaultProfileID string    `json:"default_profile_id"`
	Pinned           []string  `json:"pinned,omitempty"` // pinned session ids
	Path             string    `json:"path"`             // filesystem path to workspace directory
}

// IsPinned reports whether a session id is pinned in this workspace.
func (w *Workspace) IsPinned(sessionID string) bool {
	for _, id := range w.Pinned {
		if id == sessionID {
			return true
		}
	}
	return false
}

// WorkspaceManager handles workspace directory creation.
type WorkspaceManager struct {
	basePath string
}

// NewWorkspaceManager creates a workspace manager using the given base directory.
func NewWorkspaceManager(basePath string) *WorkspaceManager {
	return &WorkspaceManager{basePath: basePath}
}

// CreateWorkspace creates a new workspace directory and record with defaults.
func (wm *WorkspaceManager) CreateWorkspace(name, defaultRegion, defaultLocation string) (*Workspace, error) {
	wsUUID := uuid.New().String()
	wsPath := filepath.Join(wm.basePath, wsUUID)

	now := time.Now().UTC()
	ws := &Workspace{
		UUID:            wsUUID,
		Name:            name,
		CreatedAt:       now,
		UpdatedAt:       now,
		DefaultRegion:   defaultRegion,
		DefaultLocation: defaultLocation,
		Path:            wsPath,
	}

	if err := os.MkdirAll(wsPath, 0700); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}

	return ws, nil
}

// SaveWorkspaceRecord persists workspace metadata to the database.
func SaveWorkspaceRecord(db *sql.DB, ws *Workspace) error {
	pinnedJSON, err := json.Marshal(ws.Pinned)
	if err != nil {
		pinnedJSON = []byte("[]")
	}

	ws.UpdatedAt = time.Now().UTC()

	_, err = db.Exec(
		`INSERT OR REPLACE INTO workspaces (uuid, name, created_at, updated_at,
		 default_region, default_location, default_profile_id, pinned, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.UUID, ws.Name,
		ws.CreatedAt.Format(time.RFC3339),
		ws.UpdatedAt.Format(time.RFC3339),
		ws.DefaultRegion, ws.DefaultLocation, ws.DefaultProfileID,
		string(pinnedJSON), ws.Path,
	)
	return err
}

// LoadWorkspaceRecord reads workspace metadata from the database.
func LoadWorkspaceRecord(db *sql.DB, uuidOrName string) (*Workspace, error) {
	var ws Workspace
	var pinnedJSON, createdAt, updatedAt string

	err := db.QueryRow(
		`SELECT uuid, name, created_at, updated_at, default_region,
		 default_location, default_profile_id, pinned, path
		 FROM workspaces WHERE uuid = ? OR name = ? LIMIT 1`,
		uuidOrName, uuidOrName,
	).Scan(
		&ws.UUID, &ws.Name, &createdAt, &updatedAt,
		&ws.DefaultRegion, &ws.DefaultLocation, &ws.DefaultProfileID,
		&pinnedJSON, &ws.Path,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workspace not found: %s", uuidOrName)
		}
		return nil, err
	}

	ws.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ws.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	json.Unmarshal([]byte(pinnedJSON), &ws.Pinned)

	return &ws, nil
}

// ListWorkspaceRecords returns all workspaces found in a database.
func ListWorkspaceRecords(db *sql.DB) ([]Workspace, error) {
	rows, err := db.Query(
		`SELECT uuid, name, created_at, updated_at, default_region,
		 default_location, default_profile_id, pinned, path
		 FROM workspaces ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []Workspace
	for rows.Next() {
		var ws Workspace
		var pinnedJSON, createdAt, updatedAt string
		err := rows.Scan(
			&ws.UUID, &ws.Name, &createdAt, &updatedAt,
			&ws.DefaultRegion, &ws.DefaultLocation, &ws.DefaultProfileID,
			&pinnedJSON, &ws.Path,
		)
		if err != nil {
			return nil, err
		}
		ws.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		ws.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		json.Unmarshal([]byte(pinnedJSON), &ws.Pinned)
		workspaces = append(workspaces, ws)
	}
	return workspaces, nil
}
