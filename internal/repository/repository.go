// Package repository implements durable storage of sessions, profiles,
// idp-urls, integrations and segments over the workspace SQLite database.
// The in-memory store delegates all persistence here; nothing above this
// package touches SQL.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/virga-tools/virga/internal/core"
)

// Repository provides workspace-scoped CRUD over the metadata database.
type Repository struct {
	db            *sql.DB
	workspaceUUID string
}

// New creates a repository bound to the given workspace.
func New(db *sql.DB, workspaceUUID string) *Repository {
	return &Repository{db: db, workspaceUUID: workspaceUUID}
}

// WorkspaceUUID returns the workspace this repository is bound to.
func (r *Repository) WorkspaceUUID() string { return r.workspaceUUID }

// --- Sessions ---

const sessionColumns = `id, name, type, status, region, start_time, role_arn,
	role_session_name, mfa_device, profile_id, idp_url_id, parent_session_id,
	integration_id, tenant_id, subscription_id, created_at, workspace_uuid`

// ListSessions returns all sessions in insertion order.
func (r *Repository) ListSessions() ([]core.Session, error) {
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE workspace_uuid = ? ORDER BY sort_index ASC`,
		r.workspaceUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// GetSession retrieves a session by id.
func (r *Repository) GetSession(id string) (*core.Session, error) {
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE workspace_uuid = ? AND id = ? LIMIT 1`,
		r.workspaceUUID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, core.NewNotFoundError("session", id)
	}
	return &sessions[0], nil
}

// AddSession inserts a session at the end of the store's natural order.
func (r *Repository) AddSession(s core.Session) error {
	var maxIdx sql.NullInt64
	r.db.QueryRow(
		"SELECT MAX(sort_index) FROM sessions WHERE workspace_uuid = ?",
		r.workspaceUUID,
	).Scan(&maxIdx)

	nextIdx := 0
	if maxIdx.Valid {
		nextIdx = int(maxIdx.Int64) + 1
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, name, type, status, region, start_time, role_arn,
		 role_session_name, mfa_device, profile_id, idp_url_id, parent_session_id,
		 integration_id, tenant_id, subscription_id, created_at, sort_index, workspace_uuid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, string(s.Type), string(s.Status), s.Region,
		nullableTime(s.StartDateTime),
		s.RoleARN, s.RoleSessionName, s.MFADevice, s.ProfileID, s.IdpURLID,
		s.ParentSessionID, s.IntegrationID, s.TenantID, s.SubscriptionID,
		s.CreatedAt.Format(time.RFC3339), nextIdx, r.workspaceUUID,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSession rewrites the mutable columns of a session row.
func (r *Repository) UpdateSession(s core.Session) error {
	res, err := r.db.Exec(
		`UPDATE sessions SET name = ?, status = ?, region = ?, start_time = ?,
		 role_arn = ?, role_session_name = ?, mfa_device = ?, profile_id = ?,
		 idp_url_id = ?, parent_session_id = ?, integration_id = ?, tenant_id = ?,
		 subscription_id = ? WHERE workspace_uuid = ? AND id = ?`,
		s.Name, string(s.Status), s.Region, nullableTime(s.StartDateTime),
		s.RoleARN, s.RoleSessionName, s.MFADevice, s.ProfileID, s.IdpURLID,
		s.ParentSessionID, s.IntegrationID, s.TenantID, s.SubscriptionID,
		r.workspaceUUID, s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("session", s.ID)
	}
	return nil
}

// DeleteSession removes a session row.
func (r *Repository) DeleteSession(id string) error {
	res, err := r.db.Exec(
		"DELETE FROM sessions WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("session", id)
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]core.Session, error) {
	var sessions []core.Session
	for rows.Next() {
		var s core.Session
		var startTime sql.NullString
		var createdAt string

		err := rows.Scan(
			&s.ID, &s.Name, &s.Type, &s.Status, &s.Region, &startTime,
			&s.RoleARN, &s.RoleSessionName, &s.MFADevice, &s.ProfileID,
			&s.IdpURLID, &s.ParentSessionID, &s.IntegrationID,
			&s.TenantID, &s.SubscriptionID, &createdAt, &s.WorkspaceUUID,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		if startTime.Valid {
			t, _ := time.Parse(time.RFC3339, startTime.String)
			s.StartDateTime = &t
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// --- Named profiles ---

// ListProfiles returns all profiles, default first.
func (r *Repository) ListProfiles() ([]core.NamedProfile, error) {
	rows, err := r.db.Query(
		`SELECT id, name, workspace_uuid FROM profiles
		 WHERE workspace_uuid = ? ORDER BY name = ? DESC, name ASC`,
		r.workspaceUUID, core.DefaultProfileName,
	)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var profiles []core.NamedProfile
	for rows.Next() {
		var p core.NamedProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.WorkspaceUUID); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// GetProfile retrieves a profile by id.
func (r *Repository) GetProfile(id string) (*core.NamedProfile, error) {
	var p core.NamedProfile
	err := r.db.QueryRow(
		"SELECT id, name, workspace_uuid FROM profiles WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	).Scan(&p.ID, &p.Name, &p.WorkspaceUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("profile", id)
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

// GetProfileByName retrieves a profile by its unique name.
func (r *Repository) GetProfileByName(name string) (*core.NamedProfile, error) {
	var p core.NamedProfile
	err := r.db.QueryRow(
		"SELECT id, name, workspace_uuid FROM profiles WHERE workspace_uuid = ? AND name = ?",
		r.workspaceUUID, name,
	).Scan(&p.ID, &p.Name, &p.WorkspaceUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("profile", name)
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

// AddProfile inserts a profile row.
func (r *Repository) AddProfile(p core.NamedProfile) error {
	_, err := r.db.Exec(
		"INSERT INTO profiles (id, name, workspace_uuid) VALUES (?, ?, ?)",
		p.ID, p.Name, r.workspaceUUID,
	)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile row.
func (r *Repository) DeleteProfile(id string) error {
	res, err := r.db.Exec(
		"DELETE FROM profiles WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("profile", id)
	}
	return nil
}

// --- Identity provider URLs ---

// ListIdpURLs returns all idp-urls.
func (r *Repository) ListIdpURLs() ([]core.IdpURL, error) {
	rows, err := r.db.Query(
		"SELECT id, url, workspace_uuid FROM idp_urls WHERE workspace_uuid = ? ORDER BY url ASC",
		r.workspaceUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying idp-urls: %w", err)
	}
	defer rows.Close()

	var urls []core.IdpURL
	for rows.Next() {
		var u core.IdpURL
		if err := rows.Scan(&u.ID, &u.URL, &u.WorkspaceUUID); err != nil {
			return nil, fmt.Errorf("scanning idp-url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// GetIdpURL retrieves an idp-url by id.
func (r *Repository) GetIdpURL(id string) (*core.IdpURL, error) {
	var u core.IdpURL
	err := r.db.QueryRow(
		"SELECT id, url, workspace_uuid FROM idp_urls WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	).Scan(&u.ID, &u.URL, &u.WorkspaceUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("idp-url", id)
		}
		return nil, fmt.Errorf("querying idp-url: %w", err)
	}
	return &u, nil
}

// GetIdpURLByURL retrieves an idp-url by exact string match.
func (r *Repository) GetIdpURLByURL(url string) (*core.IdpURL, error) {
	var u core.IdpURL
	err := r.db.QueryRow(
		"SELECT id, url, workspace_uuid FROM idp_urls WHERE workspace_uuid = ? AND url = ?",
		r.workspaceUUID, url,
	).Scan(&u.ID, &u.URL, &u.WorkspaceUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("idp-url", url)
		}
		return nil, fmt.Errorf("querying idp-url: %w", err)
	}
	return &u, nil
}

// AddIdpURL inserts an idp-url row.
func (r *Repository) AddIdpURL(u core.IdpURL) error {
	_, err := r.db.Exec(
		"INSERT INTO idp_urls (id, url, workspace_uuid) VALUES (?, ?, ?)",
		u.ID, u.URL, r.workspaceUUID,
	)
	if err != nil {
		return fmt.Errorf("inserting idp-url: %w", err)
	}
	return nil
}

// DeleteIdpURL removes an idp-url row.
func (r *Repository) DeleteIdpURL(id string) error {
	res, err := r.db.Exec(
		"DELETE FROM idp_urls WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting idp-url: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("idp-url", id)
	}
	return nil
}

// --- Integrations ---

// ListIntegrations returns all integrations ordered by alias.
func (r *Repository) ListIntegrations() ([]core.Integration, error) {
	rows, err := r.db.Query(
		`SELECT id, type, alias, portal_url, tenant_id, region, browser_opening,
		 access_token_expiration, workspace_uuid
		 FROM integrations WHERE workspace_uuid = ? ORDER BY alias ASC`,
		r.workspaceUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	var integrations []core.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, *i)
	}
	return integrations, rows.Err()
}

// GetIntegration retrieves an integration by id.
func (r *Repository) GetIntegration(id string) (*core.Integration, error) {
	rows, err := r.db.Query(
		`SELECT id, type, alias, portal_url, tenant_id, region, browser_opening,
		 access_token_expiration, workspace_uuid
		 FROM integrations WHERE workspace_uuid = ? AND id = ? LIMIT 1`,
		r.workspaceUUID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying integration: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, core.NewNotFoundError("integration", id)
	}
	return scanIntegration(rows)
}

// AddIntegration inserts an integration row.
func (r *Repository) AddIntegration(i core.Integration) error {
	_, err := r.db.Exec(
		`INSERT INTO integrations (id, type, alias, portal_url, tenant_id, region,
		 browser_opening, access_token_expiration, workspace_uuid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, string(i.Type), i.Alias, i.PortalURL, i.TenantID, i.Region,
		string(i.BrowserOpening), nullableTime(i.AccessTokenExpiration),
		r.workspaceUUID,
	)
	if err != nil {
		return fmt.Errorf("inserting integration: %w", err)
	}
	return nil
}

// UpdateIntegration rewrites an integration row.
func (r *Repository) UpdateIntegration(i core.Integration) error {
	res, err := r.db.Exec(
		`UPDATE integrations SET alias = ?, portal_url = ?, tenant_id = ?, region = ?,
		 browser_opening = ?, access_token_expiration = ?
		 WHERE workspace_uuid = ? AND id = ?`,
		i.Alias, i.PortalURL, i.TenantID, i.Region,
		string(i.BrowserOpening), nullableTime(i.AccessTokenExpiration),
		r.workspaceUUID, i.ID,
	)
	if err != nil {
		return fmt.Errorf("updating integration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("integration", i.ID)
	}
	return nil
}

// DeleteIntegration removes an integration row.
func (r *Repository) DeleteIntegration(id string) error {
	res, err := r.db.Exec(
		"DELETE FROM integrations WHERE workspace_uuid = ? AND id = ?",
		r.workspaceUUID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting integration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("integration", id)
	}
	return nil
}

func scanIntegration(rows *sql.Rows) (*core.Integration, error) {
	var i core.Integration
	var expiration sql.NullString
	err := rows.Scan(
		&i.ID, &i.Type, &i.Alias, &i.PortalURL, &i.TenantID, &i.Region,
		&i.BrowserOpening, &expiration, &i.WorkspaceUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning integration: %w", err)
	}
	if expiration.Valid {
		t, _ := time.Parse(time.RFC3339, expiration.String)
		i.AccessTokenExpiration = &t
	}
	return &i, nil
}

// --- Segments ---

// SegmentRow is a stored filter configuration; the filter package owns the
// JSON shape.
type SegmentRow struct {
	Name       string
	FilterJSON []byte
}

// ListSegments returns all saved segments.
func (r *Repository) ListSegments() ([]SegmentRow, error) {
	rows, err := r.db.Query(
		"SELECT name, filter_json FROM segments WHERE workspace_uuid = ? ORDER BY name ASC",
		r.workspaceUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segments []SegmentRow
	for rows.Next() {
		var s SegmentRow
		var filterJSON string
		if err := rows.Scan(&s.Name, &filterJSON); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		s.FilterJSON = []byte(filterJSON)
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// GetSegment retrieves a segment by name.
func (r *Repository) GetSegment(name string) (*SegmentRow, error) {
	var filterJSON string
	err := r.db.QueryRow(
		"SELECT filter_json FROM segments WHERE workspace_uuid = ? AND name = ?",
		r.workspaceUUID, name,
	).Scan(&filterJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("segment", name)
		}
		return nil, fmt.Errorf("querying segment: %w", err)
	}
	return &SegmentRow{Name: name, FilterJSON: []byte(filterJSON)}, nil
}

// SaveSegment inserts or replaces a segment.
func (r *Repository) SaveSegment(name string, filterJSON []byte) error {
	if !json.Valid(filterJSON) {
		return core.NewValidationError("filter", "segment filter is not valid JSON")
	}
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO segments (name, filter_json, workspace_uuid) VALUES (?, ?, ?)",
		name, string(filterJSON), r.workspaceUUID,
	)
	if err != nil {
		return fmt.Errorf("saving segment: %w", err)
	}
	return nil
}

// DeleteSegment removes a segment by name.
func (r *Repository) DeleteSegment(name string) error {
	res, err := r.db.Exec(
		"DELETE FROM segments WHERE workspace_uuid = ? AND name = ?",
		r.workspaceUUID, name,
	)
	if err != nil {
		return fmt.Errorf("deleting segment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.NewNotFoundError("segment", name)
	}
	return nil
}
