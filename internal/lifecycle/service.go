// Package lifecycle implements the orchestrator: the only sanctioned entry
// points for mutating sessions, profiles, idp-urls and integrations. It
// enforces the cascade-and-confirm rules, keeps the store and the vault
// consistent, and drives the refresh channel to remote views.
package lifecycle

import (
	"context"
	"time"

	"github.com/virga-tools/virga/internal/core"
)

// SessionService materializes and tears down provider credentials for one
// session. Implementations talk to STS, SSO or Azure AD; the orchestrator
// never touches credentials itself.
type SessionService interface {
	Start(ctx context.Context, s core.Session) error
	Stop(ctx context.Context, s core.Session) error
}

// ServiceFactory yields the SessionService for a session type.
type ServiceFactory interface {
	ServiceFor(t core.SessionType) SessionService
}

// Notifier is the fire-and-forget refresh channel to a remote view process.
// The orchestrator calls each method exactly once per successful mutating
// operation, never on a no-op or a failed one.
type Notifier interface {
	RefreshSessions()
	RefreshIntegrations()
}

// IntegrationProvider performs the provider-side sync of an integration and
// reports the sessions it currently derives, plus the new token expiration.
type IntegrationProvider interface {
	Sync(ctx context.Context, in core.Integration) ([]core.SessionSpec, *time.Time, error)
}

// DeleteReport is the structured outcome of a destructive operation. Removal
// proceeds even when stopping an active dependent fails; such failures are
// reported here instead of aborting the cascade.
type DeleteReport struct {
	// Removed lists the sessions deleted by the operation, root first.
	Removed []core.Session
	// Reassigned lists the sessions moved to the default profile, for
	// profile deletion. Empty for the other delete operations.
	Reassigned []core.Session
	// StopFailures maps session id to the error from its stop attempt.
	StopFailures map[string]error
}

// NoopService satisfies SessionService without provider side effects. It is
// wired when a session type has no credential backend configured, so that
// lifecycle state transitions still work.
type NoopService struct{}

func (NoopService) Start(context.Context, core.Session) error { return nil }
func (NoopService) Stop(context.Context, core.Session) error  { return nil }

// StaticFactory returns the same service for every session type.
type StaticFactory struct {
	Service SessionService
}

func (f StaticFactory) ServiceFor(core.SessionType) SessionService {
	if f.Service == nil {
		return NoopService{}
	}
	return f.Service
}

// NoopNotifier satisfies Notifier when no view process is reachable.
type NoopNotifier struct{}

func (NoopNotifier) RefreshSessions()     {}
func (NoopNotifier) RefreshIntegrations() {}
