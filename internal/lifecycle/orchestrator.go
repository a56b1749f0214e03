package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/audit"
	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/regions"
	"github.com/virga-tools/virga/internal/repository"
	"github.com/virga-tools/virga/internal/resolve"
	"github.com/virga-tools/virga/internal/store"
	"github.com/virga-tools/virga/internal/vault"
)

// defaultRoleSessionName is used when a chained session request omits one.
const defaultRoleSessionName = "virga-session"

// Options wires an Orchestrator's collaborators.
type Options struct {
	Store     *store.Store
	Repo      *repository.Repository
	Vault     *vault.Vault
	Audit     *audit.Logger
	MetaDB    *sql.DB
	Workspace *core.Workspace
	Services  ServiceFactory
	Notifier  Notifier
	Operator  string
	Logger    zerolog.Logger
}

// Orchestrator mutates workspace state. Validation happens before any store
// write; cascades run inside a store batch so observers see one consistent
// post-operation state; the refresh channel fires once per successful
// operation.
type Orchestrator struct {
	store    *store.Store
	repo     *repository.Repository
	vault    *vault.Vault
	auditLog *audit.Logger
	metaDB   *sql.DB
	ws       *core.Workspace
	services ServiceFactory
	notifier Notifier
	operator string
	logger   zerolog.Logger
}

// New builds an Orchestrator. Nil Services and Notifier fall back to no-ops.
func New(opts Options) *Orchestrator {
	services := opts.Services
	if services == nil {
		services = StaticFactory{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Orchestrator{
		store:    opts.Store,
		repo:     opts.Repo,
		vault:    opts.Vault,
		auditLog: opts.Audit,
		metaDB:   opts.MetaDB,
		ws:       opts.Workspace,
		services: services,
		notifier: notifier,
		operator: opts.Operator,
		logger:   opts.Logger.With().Str("subsystem", "lifecycle").Logger(),
	}
}

// iamUserSecret is the vault payload for an IAM user session.
type iamUserSecret struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// --- Session creation ---

// CreateSession validates the request, persists the new session and fires
// one refresh. For federated requests an unknown idp-url string is
// registered as a new IdpURL record as a side effect.
func (o *Orchestrator) CreateSession(ctx context.Context, spec core.SessionSpec) (core.Session, error) {
	sess, secret, err := o.buildSession(spec)
	if err != nil {
		return core.Session{}, err
	}

	if err := o.store.AddSession(sess); err != nil {
		return core.Session{}, err
	}

	if secret != nil {
		payload, _ := json.Marshal(secret)
		if err := o.vault.Put(vault.SessionKey(sess.ID), payload); err != nil {
			// The record without its keys is unusable; roll it back.
			o.store.RemoveSession(sess.ID)
			return core.Session{}, fmt.Errorf("storing session secret: %w", err)
		}
		if err := o.vault.Save(); err != nil {
			// An unsaved secret would not survive a restart; the record
			// must not outlive it.
			o.vault.Delete(vault.SessionKey(sess.ID))
			o.store.RemoveSession(sess.ID)
			return core.Session{}, fmt.Errorf("saving vault: %w", err)
		}
	}

	o.audit(audit.EventSessionCreated, sess.ID, map[string]string{
		"name": sess.Name,
		"type": string(sess.Type),
	})
	o.logger.Info().Str("session", sess.ID).Str("type", string(sess.Type)).Msg("session created")
	o.notifier.RefreshSessions()
	return sess, nil
}

// buildSession validates a creation request and returns the resulting record
// plus the vault payload, if any. No state is mutated except idp-url
// registration for federated requests.
func (o *Orchestrator) buildSession(spec core.SessionSpec) (core.Session, *iamUserSecret, error) {
	if strings.TrimSpace(spec.SessionName()) == "" {
		return core.Session{}, nil, core.NewValidationError("name", "session name is required")
	}

	now := time.Now().UTC()
	sess := core.Session{
		ID:            uuid.NewString(),
		Name:          spec.SessionName(),
		Type:          spec.SessionType(),
		Status:        core.StatusInactive,
		CreatedAt:     now,
		WorkspaceUUID: o.ws.UUID,
	}

	var secret *iamUserSecret

	switch s := spec.(type) {
	case core.IAMUserSpec:
		if err := o.checkRegion(core.ProviderAWS, s.Region); err != nil {
			return core.Session{}, nil, err
		}
		if s.AccessKey == "" {
			return core.Session{}, nil, core.NewValidationError("accessKey", "access key is required")
		}
		if s.SecretKey == "" {
			return core.Session{}, nil, core.NewValidationError("secretKey", "secret key is required")
		}
		profileID, err := o.resolveProfileID(s.ProfileID)
		if err != nil {
			return core.Session{}, nil, err
		}
		sess.Region = s.Region
		sess.ProfileID = profileID
		sess.MFADevice = s.MFADevice
		secret = &iamUserSecret{AccessKey: s.AccessKey, SecretKey: s.SecretKey}

	case core.FederatedSpec:
		if err := o.checkRegion(core.ProviderAWS, s.Region); err != nil {
			return core.Session{}, nil, err
		}
		if s.RoleARN == "" {
			return core.Session{}, nil, core.NewValidationError("roleArn", "role ARN is required")
		}
		if s.IdpARN == "" {
			return core.Session{}, nil, core.NewValidationError("idpArn", "identity provider ARN is required")
		}
		idpURLID, err := o.ensureIdpURL(s.IdpURL)
		if err != nil {
			return core.Session{}, nil, err
		}
		profileID, err := o.resolveProfileID(s.ProfileID)
		if err != nil {
			return core.Session{}, nil, err
		}
		sess.Region = s.Region
		sess.RoleARN = s.RoleARN
		sess.IdpURLID = idpURLID
		sess.ProfileID = profileID

	case core.ChainedSpec:
		if err := o.checkRegion(core.ProviderAWS, s.Region); err != nil {
			return core.Session{}, nil, err
		}
		if s.RoleARN == "" {
			return core.Session{}, nil, core.NewValidationError("roleArn", "role ARN is required")
		}
		if s.ParentSessionID == "" {
			return core.Session{}, nil, core.NewValidationError("parentSessionId", "parent session id is required")
		}
		parent, err := o.store.GetSession(s.ParentSessionID)
		if err != nil {
			return core.Session{}, nil, err
		}
		if !parent.Type.Chainable() {
			return core.Session{}, nil, core.NewConflictError(
				fmt.Sprintf("cannot chain from a %s session", parent.Type))
		}
		profileID, err := o.resolveProfileID(s.ProfileID)
		if err != nil {
			return core.Session{}, nil, err
		}
		sess.Region = s.Region
		sess.RoleARN = s.RoleARN
		sess.ParentSessionID = s.ParentSessionID
		sess.ProfileID = profileID
		sess.RoleSessionName = s.RoleSessionName
		if sess.RoleSessionName == "" {
			sess.RoleSessionName = defaultRoleSessionName
		}

	case core.SSORoleSpec:
		if err := o.checkRegion(core.ProviderAWS, s.Region); err != nil {
			return core.Session{}, nil, err
		}
		if s.RoleARN == "" {
			return core.Session{}, nil, core.NewValidationError("roleArn", "role ARN is required")
		}
		if s.IntegrationID == "" {
			return core.Session{}, nil, core.NewValidationError("integrationId", "integration id is required")
		}
		if _, err := o.store.GetIntegration(s.IntegrationID); err != nil {
			return core.Session{}, nil, err
		}
		profileID, err := o.resolveProfileID(s.ProfileID)
		if err != nil {
			return core.Session{}, nil, err
		}
		sess.Region = s.Region
		sess.RoleARN = s.RoleARN
		sess.IntegrationID = s.IntegrationID
		sess.ProfileID = profileID

	case core.AzureSpec:
		if err := o.checkRegion(core.ProviderAzure, s.Location); err != nil {
			return core.Session{}, nil, err
		}
		if s.TenantID == "" {
			return core.Session{}, nil, core.NewValidationError("tenantId", "tenant id is required")
		}
		if s.SubscriptionID == "" {
			return core.Session{}, nil, core.NewValidationError("subscriptionId", "subscription id is required")
		}
		sess.Region = s.Location
		sess.TenantID = s.TenantID
		sess.SubscriptionID = s.SubscriptionID
		sess.IntegrationID = s.IntegrationID

	default:
		return core.Session{}, nil, core.NewValidationError("type", "unknown session request type")
	}

	return sess, secret, nil
}

func (o *Orchestrator) checkRegion(p core.Provider, region string) error {
	field := "region"
	if p == core.ProviderAzure {
		field = "location"
	}
	if region == "" {
		return core.NewValidationError(field, field+" is required")
	}
	if !regions.ValidForProvider(p, region) {
		return core.NewValidationError(field, fmt.Sprintf("%q is not a valid %s %s", region, p, field))
	}
	return nil
}

// resolveProfileID falls back to the workspace default profile when the
// request omits one, and verifies an explicit id exists.
func (o *Orchestrator) resolveProfileID(profileID string) (string, error) {
	if profileID == "" {
		return o.ws.DefaultProfileID, nil
	}
	if _, err := o.repo.GetProfile(profileID); err != nil {
		return "", err
	}
	return profileID, nil
}

// ensureIdpURL returns the id of the idp-url record matching the given
// string, creating the record when no match exists.
func (o *Orchestrator) ensureIdpURL(rawURL string) (string, error) {
	if err := validateIdpURL(rawURL); err != nil {
		return "", err
	}
	existing, err := o.repo.GetIdpURLByURL(rawURL)
	if err == nil {
		return existing.ID, nil
	}
	if !core.IsNotFound(err) {
		return "", err
	}

	u := core.IdpURL{
		ID:            uuid.NewString(),
		URL:           rawURL,
		WorkspaceUUID: o.ws.UUID,
	}
	if err := o.repo.AddIdpURL(u); err != nil {
		return "", err
	}
	o.audit(audit.EventIdpURLCreated, u.ID, map[string]string{"url": u.URL})
	return u.ID, nil
}

func validateIdpURL(rawURL string) error {
	if rawURL == "" {
		return core.NewValidationError("idpUrl", "identity provider URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.NewValidationError("idpUrl", "identity provider URL must be a valid http(s) URL")
	}
	return nil
}

// --- Start / stop ---

// StartSession materializes credentials for a session. The session passes
// through pending while the provider call is in flight.
func (o *Orchestrator) StartSession(ctx context.Context, id string) error {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return err
	}
	if sess.Status == core.StatusActive {
		return nil
	}

	sess.Status = core.StatusPending
	if err := o.store.UpdateSession(sess); err != nil {
		return err
	}

	svc := o.services.ServiceFor(sess.Type)
	if err := svc.Start(ctx, sess); err != nil {
		sess.Status = core.StatusInactive
		sess.StartDateTime = nil
		if uerr := o.store.UpdateSession(sess); uerr != nil {
			o.logger.Warn().Err(uerr).Str("session", sess.ID).Msg("reverting session after failed start")
		}
		return fmt.Errorf("starting session %s: %w", sess.Name, err)
	}

	now := time.Now().UTC()
	sess.Status = core.StatusActive
	sess.StartDateTime = &now
	if err := o.store.UpdateSession(sess); err != nil {
		return err
	}

	o.audit(audit.EventSessionStarted, sess.ID, nil)
	o.logger.Info().Str("session", sess.ID).Msg("session started")
	o.notifier.RefreshSessions()
	return nil
}

// StopSession deactivates a session. The record goes inactive even when the
// provider-side stop fails; that failure is returned, not swallowed.
func (o *Orchestrator) StopSession(ctx context.Context, id string) error {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return err
	}
	if sess.Status == core.StatusInactive {
		return nil
	}

	svc := o.services.ServiceFor(sess.Type)
	stopErr := svc.Stop(ctx, sess)

	sess.Status = core.StatusInactive
	sess.StartDateTime = nil
	if err := o.store.UpdateSession(sess); err != nil {
		return err
	}

	o.audit(audit.EventSessionStopped, sess.ID, nil)
	o.notifier.RefreshSessions()

	if stopErr != nil {
		return fmt.Errorf("stopping session %s: %w", sess.Name, stopErr)
	}
	o.logger.Info().Str("session", sess.ID).Msg("session stopped")
	return nil
}

// --- Deletion cascades ---

// DeleteSession removes a session and, transitively, every chained session
// descending from it. Without force, a non-empty cascade is refused with
// ConfirmationRequired and nothing is mutated.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string, force bool) (*DeleteReport, error) {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return nil, err
	}

	affected := resolve.AffectedBySessionDeletion(o.store.Sessions(), id)
	if len(affected) > 0 && !force {
		return nil, &core.ConfirmationRequired{Kind: "session", ID: id, Affected: affected}
	}

	report := &DeleteReport{StopFailures: map[string]error{}}
	doomed := append([]core.Session{sess}, affected...)

	err = o.store.Batch(func() error {
		// Children go first so no window exists where a chained session
		// outlives its parent.
		for i := len(doomed) - 1; i >= 0; i-- {
			if err := o.removeSession(ctx, doomed[i], report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	// Removed is reported root-first.
	report.Removed = doomed

	if err := o.vault.Save(); err != nil {
		o.logger.Warn().Err(err).Msg("saving vault after session delete")
	}
	o.notifier.RefreshSessions()
	return report, nil
}

// removeSession stops (best effort), deletes the store record and drops the
// vault secret for one session. Stop failures land in the report; removal
// proceeds so no record outlives its backing credentials.
func (o *Orchestrator) removeSession(ctx context.Context, sess core.Session, report *DeleteReport) error {
	if sess.Status != core.StatusInactive {
		svc := o.services.ServiceFor(sess.Type)
		if err := svc.Stop(ctx, sess); err != nil {
			report.StopFailures[sess.ID] = err
			o.logger.Warn().Err(err).Str("session", sess.ID).Msg("stop failed during delete")
		}
	}
	if err := o.store.RemoveSession(sess.ID); err != nil {
		return err
	}
	if key := vault.SessionKey(sess.ID); o.vault.Has(key) {
		o.vault.Delete(key)
	}
	o.audit(audit.EventSessionDeleted, sess.ID, map[string]string{"name": sess.Name})
	return nil
}

// DeleteProfile removes a named profile. Sessions using it are not deleted;
// they are reassigned to the workspace default profile, preserving their
// running state across the swap. The default profile cannot be deleted.
func (o *Orchestrator) DeleteProfile(ctx context.Context, profileID string, force bool) (*DeleteReport, error) {
	profile, err := o.repo.GetProfile(profileID)
	if err != nil {
		return nil, err
	}
	if profile.Name == core.DefaultProfileName {
		return nil, core.NewConflictError("the default profile cannot be deleted")
	}

	affected := resolve.AffectedByProfileDeletion(o.store.Sessions(), profileID)
	if len(affected) > 0 && !force {
		return nil, &core.ConfirmationRequired{Kind: "profile", ID: profileID, Affected: affected}
	}

	report := &DeleteReport{StopFailures: map[string]error{}}

	err = o.store.Batch(func() error {
		for _, sess := range affected {
			if err := o.reassignProfile(ctx, sess, o.ws.DefaultProfileID, report); err != nil {
				return err
			}
			report.Reassigned = append(report.Reassigned, sess)
		}
		return o.repo.DeleteProfile(profileID)
	})
	if err != nil {
		return report, err
	}

	o.audit(audit.EventProfileDeleted, profileID, map[string]any{
		"name": profile.Name, "reassigned": len(affected),
	})
	o.logger.Info().Str("profile", profileID).Int("reassigned", len(affected)).Msg("profile deleted")
	o.notifier.RefreshSessions()
	return report, nil
}

// reassignProfile moves one session to another profile, stopping an active
// session first and restarting it afterwards so its status is preserved.
func (o *Orchestrator) reassignProfile(ctx context.Context, sess core.Session, profileID string, report *DeleteReport) error {
	svc := o.services.ServiceFor(sess.Type)
	wasActive := sess.Status == core.StatusActive

	if wasActive {
		if err := svc.Stop(ctx, sess); err != nil {
			report.StopFailures[sess.ID] = err
			o.logger.Warn().Err(err).Str("session", sess.ID).Msg("stop failed during reassignment")
		}
	}

	sess.ProfileID = profileID
	if err := o.store.UpdateSession(sess); err != nil {
		return err
	}

	if wasActive {
		if err := svc.Start(ctx, sess); err != nil {
			return fmt.Errorf("restarting session %s after reassignment: %w", sess.Name, err)
		}
		now := time.Now().UTC()
		sess.Status = core.StatusActive
		sess.StartDateTime = &now
		if err := o.store.UpdateSession(sess); err != nil {
			return err
		}
	}

	o.audit(audit.EventProfileReassigned, sess.ID, map[string]string{"profile_id": profileID})
	return nil
}

// DeleteIdpURL removes an identity provider URL and every federated session
// bound to it. Unlike profile deletion there is no reassignment fallback:
// the dependent sessions are deleted outright.
func (o *Orchestrator) DeleteIdpURL(ctx context.Context, idpURLID string, force bool) (*DeleteReport, error) {
	if _, err := o.repo.GetIdpURL(idpURLID); err != nil {
		return nil, err
	}

	// Federated dependents take their chained descendants down with them,
	// mirroring session deletion.
	sessions := o.store.Sessions()
	affected := resolve.ExpandWithChainedDescendants(sessions,
		resolve.AffectedByIdpURLDeletion(sessions, idpURLID))
	if len(affected) > 0 && !force {
		return nil, &core.ConfirmationRequired{Kind: "idp-url", ID: idpURLID, Affected: affected}
	}

	report := &DeleteReport{StopFailures: map[string]error{}}

	err := o.store.Batch(func() error {
		for i := len(affected) - 1; i >= 0; i-- {
			if err := o.removeSession(ctx, affected[i], report); err != nil {
				return err
			}
		}
		return o.repo.DeleteIdpURL(idpURLID)
	})
	if err != nil {
		return report, err
	}
	report.Removed = affected

	if err := o.vault.Save(); err != nil {
		o.logger.Warn().Err(err).Msg("saving vault after idp-url delete")
	}
	o.audit(audit.EventIdpURLDeleted, idpURLID, map[string]int{"removed": len(affected)})
	o.notifier.RefreshSessions()
	return report, nil
}

// DeleteIntegration logs out an integration and removes it together with
// its derived sessions.
func (o *Orchestrator) DeleteIntegration(ctx context.Context, integrationID string, force bool) (*DeleteReport, error) {
	integration, err := o.store.GetIntegration(integrationID)
	if err != nil {
		return nil, err
	}

	sessions := o.store.Sessions()
	affected := resolve.ExpandWithChainedDescendants(sessions,
		resolve.AffectedByIntegrationDeletion(sessions, integrationID))
	if len(affected) > 0 && !force {
		return nil, &core.ConfirmationRequired{Kind: "integration", ID: integrationID, Affected: affected}
	}

	report := &DeleteReport{StopFailures: map[string]error{}}

	err = o.store.Batch(func() error {
		for i := len(affected) - 1; i >= 0; i-- {
			if err := o.removeSession(ctx, affected[i], report); err != nil {
				return err
			}
		}
		return o.store.RemoveIntegration(integrationID)
	})
	if err != nil {
		return report, err
	}
	report.Removed = affected

	o.audit(audit.EventIntegrationDeleted, integrationID, map[string]string{"alias": integration.Alias})
	o.notifier.RefreshSessions()
	o.notifier.RefreshIntegrations()
	return report, nil
}

// --- Profiles, idp-urls, integrations ---

// CreateProfile registers a new named profile. Names are unique per
// workspace.
func (o *Orchestrator) CreateProfile(name string) (core.NamedProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.NamedProfile{}, core.NewValidationError("name", "profile name is required")
	}
	if _, err := o.repo.GetProfileByName(name); err == nil {
		return core.NamedProfile{}, core.NewConflictError(fmt.Sprintf("profile %q already exists", name))
	} else if !core.IsNotFound(err) {
		return core.NamedProfile{}, err
	}

	p := core.NamedProfile{
		ID:            uuid.NewString(),
		Name:          name,
		WorkspaceUUID: o.ws.UUID,
	}
	if err := o.repo.AddProfile(p); err != nil {
		return core.NamedProfile{}, err
	}

	o.audit(audit.EventProfileCreated, p.ID, map[string]string{"name": p.Name})
	o.notifier.RefreshSessions()
	return p, nil
}

// CreateIdpURL registers a new identity provider URL.
func (o *Orchestrator) CreateIdpURL(rawURL string) (core.IdpURL, error) {
	if err := validateIdpURL(rawURL); err != nil {
		return core.IdpURL{}, err
	}
	if _, err := o.repo.GetIdpURLByURL(rawURL); err == nil {
		return core.IdpURL{}, core.NewConflictError(fmt.Sprintf("idp-url %q already exists", rawURL))
	} else if !core.IsNotFound(err) {
		return core.IdpURL{}, err
	}

	u := core.IdpURL{
		ID:            uuid.NewString(),
		URL:           rawURL,
		WorkspaceUUID: o.ws.UUID,
	}
	if err := o.repo.AddIdpURL(u); err != nil {
		return core.IdpURL{}, err
	}

	o.audit(audit.EventIdpURLCreated, u.ID, map[string]string{"url": u.URL})
	o.notifier.RefreshSessions()
	return u, nil
}

// IntegrationRequest carries the fields of a new integration.
type IntegrationRequest struct {
	Type           core.IntegrationType
	Alias          string
	PortalURL      string // AWS SSO only
	TenantID       string // Azure only
	Region         string
	BrowserOpening core.BrowserOpening
}

// CreateIntegration validates and registers a new integration. Derived
// sessions appear later, on sync, never here.
func (o *Orchestrator) CreateIntegration(req IntegrationRequest) (core.Integration, error) {
	if strings.TrimSpace(req.Alias) == "" {
		return core.Integration{}, core.NewValidationError("alias", "integration alias is required")
	}

	switch req.Type {
	case core.IntegrationAWSSSO:
		u, err := url.Parse(req.PortalURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return core.Integration{}, core.NewValidationError("portalUrl", "portal URL must be a valid https URL")
		}
		if !regions.ValidAWSRegion(req.Region) {
			return core.Integration{}, core.NewValidationError("region", fmt.Sprintf("%q is not a valid AWS region", req.Region))
		}
	case core.IntegrationAzure:
		if req.TenantID == "" {
			return core.Integration{}, core.NewValidationError("tenantId", "tenant id is required")
		}
		if !regions.ValidAzureLocation(req.Region) {
			return core.Integration{}, core.NewValidationError("location", fmt.Sprintf("%q is not a valid Azure location", req.Region))
		}
	default:
		return core.Integration{}, core.NewValidationError("type", "unknown integration type")
	}

	opening := req.BrowserOpening
	if opening == "" {
		opening = core.OpenInApp
	}
	if opening != core.OpenInApp && opening != core.OpenInBrowser {
		return core.Integration{}, core.NewValidationError("browserOpening", "must be in_app or in_browser")
	}

	in := core.Integration{
		ID:             uuid.NewString(),
		Type:           req.Type,
		Alias:          req.Alias,
		PortalURL:      req.PortalURL,
		TenantID:       req.TenantID,
		Region:         req.Region,
		BrowserOpening: opening,
		WorkspaceUUID:  o.ws.UUID,
	}
	if err := o.store.AddIntegration(in); err != nil {
		return core.Integration{}, err
	}

	o.audit(audit.EventIntegrationCreated, in.ID, map[string]string{"alias": in.Alias})
	o.notifier.RefreshIntegrations()
	return in, nil
}

// SyncIntegration reconciles an integration's derived sessions with what the
// provider currently reports: new roles become sessions, vanished roles'
// sessions are removed, surviving ones are untouched.
func (o *Orchestrator) SyncIntegration(ctx context.Context, integrationID string, provider IntegrationProvider) (*DeleteReport, []core.Session, error) {
	integration, err := o.store.GetIntegration(integrationID)
	if err != nil {
		return nil, nil, err
	}

	specs, expiration, err := provider.Sync(ctx, integration)
	if err != nil {
		return nil, nil, fmt.Errorf("syncing integration %s: %w", integration.Alias, err)
	}

	wanted := make(map[string]core.SessionSpec, len(specs))
	for _, s := range specs {
		wanted[s.SessionName()] = s
	}

	existing := resolve.AffectedByIntegrationDeletion(o.store.Sessions(), integrationID)
	report := &DeleteReport{StopFailures: map[string]error{}}
	var created []core.Session

	err = o.store.Batch(func() error {
		var stale []core.Session
		for _, sess := range existing {
			if _, keep := wanted[sess.Name]; keep {
				delete(wanted, sess.Name)
				continue
			}
			stale = append(stale, sess)
		}
		// A removed role's chained descendants go with it.
		doomed := resolve.ExpandWithChainedDescendants(o.store.Sessions(), stale)
		for i := len(doomed) - 1; i >= 0; i-- {
			if err := o.removeSession(ctx, doomed[i], report); err != nil {
				return err
			}
		}
		report.Removed = doomed

		for _, spec := range wanted {
			sess, _, err := o.buildSession(spec)
			if err != nil {
				return err
			}
			sess.IntegrationID = integrationID
			if err := o.store.AddSession(sess); err != nil {
				return err
			}
			o.audit(audit.EventSessionCreated, sess.ID, map[string]string{
				"name": sess.Name, "type": string(sess.Type), "integration": integrationID,
			})
			created = append(created, sess)
		}

		integration.AccessTokenExpiration = expiration
		return o.store.UpdateIntegration(integration)
	})
	if err != nil {
		return report, created, err
	}

	o.logger.Info().Str("integration", integrationID).
		Int("created", len(created)).Int("removed", len(report.Removed)).
		Msg("integration synced")
	o.notifier.RefreshSessions()
	o.notifier.RefreshIntegrations()
	return report, created, nil
}

// --- Region, profile and pin edits ---

// ChangeDefaultRegion updates the workspace default AWS region. Existing
// sessions keep their region.
func (o *Orchestrator) ChangeDefaultRegion(region string) error {
	if !regions.ValidAWSRegion(region) {
		return core.NewValidationError("region", fmt.Sprintf("%q is not a valid AWS region", region))
	}

	o.ws.DefaultRegion = region
	o.ws.UpdatedAt = time.Now().UTC()
	if err := core.SaveWorkspaceRecord(o.metaDB, o.ws); err != nil {
		return err
	}

	o.audit(audit.EventRegionChanged, o.ws.UUID, map[string]string{"region": region})
	o.notifier.RefreshSessions()
	return nil
}

// ChangeSessionRegion validates the new region against the session's
// provider and applies it, stopping and restarting an active session so it
// never runs with a stale region.
func (o *Orchestrator) ChangeSessionRegion(ctx context.Context, id, newRegion string) error {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return err
	}
	if err := o.checkRegion(sess.Type.Provider(), newRegion); err != nil {
		return err
	}
	if sess.Region == newRegion {
		return nil
	}

	err = o.store.Batch(func() error {
		return o.applyWithRestart(ctx, sess, func(s *core.Session) {
			s.Region = newRegion
		})
	})
	if err != nil {
		return err
	}

	o.audit(audit.EventRegionChanged, sess.ID, map[string]string{"region": newRegion})
	o.notifier.RefreshSessions()
	return nil
}

// ChangeSessionProfile reassigns a session to the profile with the given
// name, creating the profile when it does not exist yet. Active sessions are
// stopped and restarted within this one call.
func (o *Orchestrator) ChangeSessionProfile(ctx context.Context, id, profileName string) error {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return err
	}
	if !sess.Type.UsesProfile() {
		return core.NewConflictError(fmt.Sprintf("%s sessions do not use named profiles", sess.Type))
	}
	profileName = strings.TrimSpace(profileName)
	if profileName == "" {
		return core.NewValidationError("profile", "profile name is required")
	}

	profile, err := o.repo.GetProfileByName(profileName)
	if core.IsNotFound(err) {
		// Created through the repo, not CreateProfile: this whole operation
		// fires a single refresh at the end.
		created := core.NamedProfile{
			ID:            uuid.NewString(),
			Name:          profileName,
			WorkspaceUUID: o.ws.UUID,
		}
		if err := o.repo.AddProfile(created); err != nil {
			return err
		}
		o.audit(audit.EventProfileCreated, created.ID, map[string]string{"name": created.Name})
		profile = &created
	} else if err != nil {
		return err
	}
	if sess.ProfileID == profile.ID {
		return nil
	}

	report := &DeleteReport{StopFailures: map[string]error{}}
	err = o.store.Batch(func() error {
		return o.reassignProfile(ctx, sess, profile.ID, report)
	})
	if err != nil {
		return err
	}
	if stopErr, ok := report.StopFailures[sess.ID]; ok {
		o.logger.Warn().Err(stopErr).Str("session", sess.ID).Msg("stop failed during profile change")
	}

	o.notifier.RefreshSessions()
	return nil
}

// applyWithRestart runs mutate on the session, wrapped in a stop/restart
// pair when the session is active. Stop must complete before the mutation
// and the mutation before the restart.
func (o *Orchestrator) applyWithRestart(ctx context.Context, sess core.Session, mutate func(*core.Session)) error {
	svc := o.services.ServiceFor(sess.Type)
	wasActive := sess.Status == core.StatusActive

	if wasActive {
		if err := svc.Stop(ctx, sess); err != nil {
			return fmt.Errorf("stopping session %s: %w", sess.Name, err)
		}
	}

	mutate(&sess)
	if err := o.store.UpdateSession(sess); err != nil {
		return err
	}

	if wasActive {
		if err := svc.Start(ctx, sess); err != nil {
			return fmt.Errorf("restarting session %s: %w", sess.Name, err)
		}
		now := time.Now().UTC()
		sess.Status = core.StatusActive
		sess.StartDateTime = &now
		return o.store.UpdateSession(sess)
	}
	return nil
}

// PinSession adds a session to the workspace pin list.
func (o *Orchestrator) PinSession(id string) error {
	if _, err := o.store.GetSession(id); err != nil {
		return err
	}
	if o.ws.IsPinned(id) {
		return nil
	}

	o.ws.Pinned = append(o.ws.Pinned, id)
	o.ws.UpdatedAt = time.Now().UTC()
	if err := core.SaveWorkspaceRecord(o.metaDB, o.ws); err != nil {
		return err
	}
	o.notifier.RefreshSessions()
	return nil
}

// UnpinSession removes a session from the workspace pin list.
func (o *Orchestrator) UnpinSession(id string) error {
	if !o.ws.IsPinned(id) {
		return nil
	}

	pinned := o.ws.Pinned[:0]
	for _, p := range o.ws.Pinned {
		if p != id {
			pinned = append(pinned, p)
		}
	}
	o.ws.Pinned = pinned
	o.ws.UpdatedAt = time.Now().UTC()
	if err := core.SaveWorkspaceRecord(o.metaDB, o.ws); err != nil {
		return err
	}
	o.notifier.RefreshSessions()
	return nil
}

func (o *Orchestrator) audit(event audit.EventType, entityID string, detail any) {
	if o.auditLog == nil {
		return
	}
	if err := o.auditLog.Log(event, o.operator, entityID, detail); err != nil {
		o.logger.Warn().Err(err).Str("event", string(event)).Msg("audit write failed")
	}
}
