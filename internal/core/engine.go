// engine.go provides the Engine that wires together a workspace's databases,
// vault and loggers. Higher layers (store, orchestrator, filter engine, RPC
// service) are constructed on top of an open Engine at their call sites.
package core

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/virga-tools/virga/internal/audit"
	"github.com/virga-tools/virga/internal/db"
	"github.com/virga-tools/virga/internal/logging"
	"github.com/virga-tools/virga/internal/vault"
)

// Engine holds the open resources of one workspace.
type Engine struct {
	Workspace   *Workspace
	MetadataDB  *sql.DB
	AuditDB     *sql.DB
	Vault       *vault.Vault
	AuditLogger *audit.Logger
	Logger      zerolog.Logger
}

// OpenWorkspace opens an existing workspace, unlocking the vault with the
// given passphrase.
func OpenWorkspace(wsPath string, passphrase string) (*Engine, error) {
	metaDB, err := db.OpenMetadataDB(wsPath)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	auditDB, err := db.OpenAuditDB(wsPath)
	if err != nil {
		metaDB.Close()
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	ws, err := LoadWorkspaceRecord(metaDB, filepath.Base(wsPath))
	if err != nil {
		// The directory name is the workspace UUID in the default layout,
		// but a moved workspace is still openable through its single record.
		rows, qerr := metaDB.Query("SELECT uuid FROM workspaces LIMIT 1")
		if qerr != nil {
			metaDB.Close()
			auditDB.Close()
			return nil, fmt.Errorf("loading workspace: %w", err)
		}
		defer rows.Close()
		if rows.Next() {
			var wsUUID string
			rows.Scan(&wsUUID)
			ws, err = LoadWorkspaceRecord(metaDB, wsUUID)
			if err != nil {
				metaDB.Close()
				auditDB.Close()
				return nil, fmt.Errorf("loading workspace by uuid: %w", err)
			}
		} else {
			metaDB.Close()
			auditDB.Close()
			return nil, fmt.Errorf("no workspace found in database at %s", wsPath)
		}
	}

	vaultPath := filepath.Join(wsPath, vault.VaultFileName)
	v, err := vault.Open(vaultPath, passphrase)
	if err != nil {
		metaDB.Close()
		auditDB.Close()
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	al, err := audit.NewLogger(auditDB, ws.UUID)
	if err != nil {
		v.Close()
		metaDB.Close()
		auditDB.Close()
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	logger, _ := logging.New(logging.Options{
		Level:  "info",
		LogDir: filepath.Join(ws.Path, "logs"),
	})

	return &Engine{
		Workspace:   ws,
		MetadataDB:  metaDB,
		AuditDB:     auditDB,
		Vault:       v,
		AuditLogger: al,
		Logger:      logger,
	}, nil
}

// InitWorkspace creates a new workspace: directory, databases, vault, the
// workspace record and the undeletable default profile.
func InitWorkspace(basePath, name, defaultRegion, defaultLocation, passphrase string) (*Engine, error) {
	wm := NewWorkspaceManager(basePath)
	ws, err := wm.CreateWorkspace(name, defaultRegion, defaultLocation)
	if err != nil {
		return nil, err
	}

	metaDB, err := db.OpenMetadataDB(ws.Path)
	if err != nil {
		return nil, fmt.Errorf("creating metadata database: %w", err)
	}

	// The workspace record goes in first: profiles reference it by foreign
	// key. The record is then updated once the default profile exists.
	if err := SaveWorkspaceRecord(metaDB, ws); err != nil {
		metaDB.Close()
		return nil, fmt.Errorf("saving workspace record: %w", err)
	}

	defaultProfileID := uuid.New().String()
	_, err = metaDB.Exec(
		"INSERT INTO profiles (id, name, workspace_uuid) VALUES (?, ?, ?)",
		defaultProfileID, DefaultProfileName, ws.UUID,
	)
	if err != nil {
		metaDB.Close()
		return nil, fmt.Errorf("creating default profile: %w", err)
	}
	ws.DefaultProfileID = defaultProfileID

	if err := SaveWorkspaceRecord(metaDB, ws); err != nil {
		metaDB.Close()
		return nil, fmt.Errorf("saving default profile reference: %w", err)
	}

	auditDB, err := db.OpenAuditDB(ws.Path)
	if err != nil {
		metaDB.Close()
		return nil, fmt.Errorf("creating audit database: %w", err)
	}

	vaultPath := filepath.Join(ws.Path, vault.VaultFileName)
	v, err := vault.Create(vaultPath, passphrase)
	if err != nil {
		metaDB.Close()
		auditDB.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	al, err := audit.NewLogger(auditDB, ws.UUID)
	if err != nil {
		v.Close()
		metaDB.Close()
		auditDB.Close()
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}

	al.Log(audit.EventWorkspaceCreated, "local", "", map[string]string{
		"workspace_uuid": ws.UUID,
		"name":           name,
	})

	logger, _ := logging.New(logging.Options{
		Level:  "info",
		LogDir: filepath.Join(ws.Path, "logs"),
	})

	return &Engine{
		Workspace:   ws,
		MetadataDB:  metaDB,
		AuditDB:     auditDB,
		Vault:       v,
		AuditLogger: al,
		Logger:      logger,
	}, nil
}

// Close cleanly shuts down all engine resources.
func (e *Engine) Close() error {
	var firstErr error
	if e.Vault != nil {
		if err := e.Vault.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.MetadataDB != nil {
		if err := e.MetadataDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.AuditDB != nil {
		if err := e.AuditDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
