// service.go implements the view-server API: refresh notifications from CLI
// mutations plus read queries over the in-memory session view. Both the gRPC
// handler and direct in-process callers use it.
package grpcapi

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/audit"
	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/filter"
	"github.com/virga-tools/virga/internal/store"
)

// Service is the API surface of a resident view process.
type Service struct {
	engine  *core.Engine
	store   *store.Store
	filters *filter.Engine
	logger  zerolog.Logger
}

// NewService builds a service over an open engine, its store and its filter
// engine.
func NewService(engine *core.Engine, st *store.Store, filters *filter.Engine) *Service {
	return &Service{
		engine:  engine,
		store:   st,
		filters: filters,
		logger:  engine.Logger.With().Str("subsystem", "rpc").Logger(),
	}
}

// --- Workspace ---

// WorkspaceInfo is a transport-safe workspace representation.
type WorkspaceInfo struct {
	UUID            string   `json:"uuid"`
	Name            string   `json:"name"`
	CreatedAt       string   `json:"created_at"`
	DefaultRegion   string   `json:"default_region"`
	DefaultLocation string   `json:"default_location"`
	Pinned          []string `json:"pinned,omitempty"`
	Path            string   `json:"path"`
}

func (s *Service) GetWorkspace() *WorkspaceInfo {
	ws := s.engine.Workspace
	return &WorkspaceInfo{
		UUID:            ws.UUID,
		Name:            ws.Name,
		CreatedAt:       ws.CreatedAt.Format(time.RFC3339),
		DefaultRegion:   ws.DefaultRegion,
		DefaultLocation: ws.DefaultLocation,
		Pinned:          ws.Pinned,
		Path:            ws.Path,
	}
}

// --- Refresh channel ---

// RefreshSessions reloads the in-memory session view from the workspace
// database. Called after a CLI-side mutation.
func (s *Service) RefreshSessions() error {
	s.logger.Debug().Msg("refreshing sessions from disk")
	return s.store.Reload()
}

// RefreshIntegrations reloads the integration view from the workspace
// database.
func (s *Service) RefreshIntegrations() error {
	s.logger.Debug().Msg("refreshing integrations from disk")
	return s.store.Reload()
}

// --- Session queries ---

// SessionInfo is a transport-safe session representation.
type SessionInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Region        string  `json:"region"`
	StartedAt     *string `json:"started_at,omitempty"`
	RoleARN       string  `json:"role_arn,omitempty"`
	ProfileID     string  `json:"profile_id,omitempty"`
	IntegrationID string  `json:"integration_id,omitempty"`
	Pinned        bool    `json:"pinned"`
}

func (s *Service) sessionToInfo(sess core.Session) SessionInfo {
	info := SessionInfo{
		ID:            sess.ID,
		Name:          sess.Name,
		Type:          string(sess.Type),
		Status:        string(sess.Status),
		Region:        sess.Region,
		RoleARN:       sess.RoleARN,
		ProfileID:     sess.ProfileID,
		IntegrationID: sess.IntegrationID,
		Pinned:        s.engine.Workspace.IsPinned(sess.ID),
	}
	if sess.StartDateTime != nil {
		started := sess.StartDateTime.Format(time.RFC3339)
		info.StartedAt = &started
	}
	return info
}

// ListSessions returns every session in the store's natural order.
func (s *Service) ListSessions() []SessionInfo {
	sessions := s.store.Sessions()
	result := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionToInfo(sess))
	}
	return result
}

// VisibleSessions returns the filtered, sorted, pin-hoisted view.
func (s *Service) VisibleSessions() ([]SessionInfo, error) {
	sessions, err := s.filters.Visible()
	if err != nil {
		return nil, err
	}
	result := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionToInfo(sess))
	}
	return result, nil
}

// ApplyFilters replaces the view's filter criteria and returns the new
// visible list.
func (s *Service) ApplyFilters(g filter.Group) ([]SessionInfo, error) {
	s.filters.SetFilters(g)
	return s.VisibleSessions()
}

// ToggleSort advances the sort cycle for a column and returns the new
// visible list.
func (s *Service) ToggleSort(col filter.Column) ([]SessionInfo, error) {
	s.filters.ToggleSort(col)
	return s.VisibleSessions()
}

// ApplySegment swaps the filter state for a saved segment and returns the
// resulting visible list.
func (s *Service) ApplySegment(name string) ([]SessionInfo, error) {
	if err := s.filters.ApplySegment(name); err != nil {
		return nil, err
	}
	return s.VisibleSessions()
}

// --- Integration queries ---

// IntegrationInfo is a transport-safe integration representation.
type IntegrationInfo struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Alias          string  `json:"alias"`
	PortalURL      string  `json:"portal_url,omitempty"`
	TenantID       string  `json:"tenant_id,omitempty"`
	Region         string  `json:"region"`
	BrowserOpening string  `json:"browser_opening"`
	TokenExpiresAt *string `json:"token_expires_at,omitempty"`
}

// ListIntegrations returns every integration.
func (s *Service) ListIntegrations() []IntegrationInfo {
	integrations := s.store.Integrations()
	result := make([]IntegrationInfo, 0, len(integrations))
	for _, in := range integrations {
		info := IntegrationInfo{
			ID:             in.ID,
			Type:           string(in.Type),
			Alias:          in.Alias,
			PortalURL:      in.PortalURL,
			TenantID:       in.TenantID,
			Region:         in.Region,
			BrowserOpening: string(in.BrowserOpening),
		}
		if in.AccessTokenExpiration != nil {
			exp := in.AccessTokenExpiration.Format(time.RFC3339)
			info.TokenExpiresAt = &exp
		}
		result = append(result, info)
	}
	return result
}

// --- Audit ---

// VerifyAuditChain checks the audit log hash chain.
func (s *Service) VerifyAuditChain() (bool, int, error) {
	return audit.Verify(s.engine.AuditDB, s.engine.Workspace.UUID)
}
