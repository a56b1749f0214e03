// Package core defines the foundational types for Virga: workspaces, sessions,
// named profiles, identity provider URLs and integrations. Every other layer
// (store, resolver, lifecycle, filter engine, CLI, view server) is built on
// these records.
package core

import (
	"time"
)

// Provider identifies the cloud a session authenticates against.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
)

// SessionType is the closed set of session variants Virga manages.
// All type-shape decisions (provider, chainability, profile usage) live on
// methods of this type; callers never compare raw strings.
type SessionType string

const (
	TypeAWSIAMUser          SessionType = "aws_iam_user"
	TypeAWSIAMRoleFederated SessionType = "aws_iam_role_federated"
	TypeAWSIAMRoleChained   SessionType = "aws_iam_role_chained"
	TypeAWSSSORole          SessionType = "aws_sso_role"
	TypeAzure               SessionType = "azure"
)

// AllSessionTypes lists every valid session type, in display order.
var AllSessionTypes = []SessionType{
	TypeAWSIAMUser,
	TypeAWSIAMRoleFederated,
	TypeAWSIAMRoleChained,
	TypeAWSSSORole,
	TypeAzure,
}

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case TypeAWSIAMUser, TypeAWSIAMRoleFederated, TypeAWSIAMRoleChained, TypeAWSSSORole, TypeAzure:
		return true
	}
	return false
}

// Provider returns the cloud provider behind a session type.
func (t SessionType) Provider() Provider {
	if t == TypeAzure {
		return ProviderAzure
	}
	return ProviderAWS
}

// Chainable reports whether a session of this type may serve as the parent
// of a chained session. Any AWS session can be a chain parent, including a
// chained one (role chaining from an assumed role); Azure sessions cannot.
func (t SessionType) Chainable() bool {
	return t.Provider() == ProviderAWS
}

// UsesProfile reports whether sessions of this type carry a named profile.
// Azure sessions do not participate in the AWS profile system.
func (t SessionType) UsesProfile() bool {
	return t.Provider() == ProviderAWS
}

// SessionStatus is the mutually exclusive runtime state of a session.
type SessionStatus string

const (
	StatusInactive SessionStatus = "inactive"
	StatusPending  SessionStatus = "pending"
	StatusActive   SessionStatus = "active"
)

// Session is one authenticated-or-authenticatable cloud identity.
// Secret material (access keys) never lives on the record; it is held in the
// workspace vault under a key derived from the session id.
type Session struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Type            SessionType   `json:"type"`
	Status          SessionStatus `json:"status"`
	Region          string        `json:"region"` // AWS region or Azure location
	StartDateTime   *time.Time    `json:"start_date_time,omitempty"`
	RoleARN         string        `json:"role_arn,omitempty"`
	RoleSessionName string        `json:"role_session_name,omitempty"`
	MFADevice       string        `json:"mfa_device,omitempty"`
	ProfileID       string        `json:"profile_id,omitempty"`
	IdpURLID        string        `json:"idp_url_id,omitempty"`
	ParentSessionID string        `json:"parent_session_id,omitempty"`
	IntegrationID   string        `json:"integration_id,omitempty"`
	TenantID        string        `json:"tenant_id,omitempty"`
	SubscriptionID  string        `json:"subscription_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	WorkspaceUUID   string        `json:"workspace_uuid"`
}

// NamedProfile is a reusable label assignable to AWS sessions, mirroring the
// AWS CLI profile concept. Names are unique within a workspace and a
// "default" profile always exists.
type NamedProfile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WorkspaceUUID string `json:"workspace_uuid"`
}

// DefaultProfileName is the name of the undeletable fallback profile.
const DefaultProfileName = "default"

// IdpURL is a SAML identity provider URL used by federated sessions.
// URLs are unique by string match within a workspace.
type IdpURL struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	WorkspaceUUID string `json:"workspace_uuid"`
}

// IntegrationType distinguishes the two federated SSO configurations.
type IntegrationType string

const (
	IntegrationAWSSSO IntegrationType = "aws_sso"
	IntegrationAzure  IntegrationType = "azure"
)

// BrowserOpening selects how an integration's auth flow is presented.
type BrowserOpening string

const (
	OpenInApp     BrowserOpening = "in_app"
	OpenInBrowser BrowserOpening = "in_browser"
)

// Integration is a federated SSO configuration owning zero or more derived
// sessions. Derived sessions are generated on sync, never created manually,
// and are destroyed with the integration.
type Integration struct {
	ID                    string          `json:"id"`
	Type                  IntegrationType `json:"type"`
	Alias                 string          `json:"alias"`
	PortalURL             string          `json:"portal_url,omitempty"`
	TenantID              string          `json:"tenant_id,omitempty"`
	Region                string          `json:"region"`
	BrowserOpening        BrowserOpening  `json:"browser_opening"`
	AccessTokenExpiration *time.Time      `json:"access_token_expiration,omitempty"`
	WorkspaceUUID         string          `json:"workspace_uuid"`
}
