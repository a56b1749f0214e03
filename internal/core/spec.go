// spec.go defines the sealed set of session creation requests. Each session
// type has its own spec struct so that required fields are visible in the
// type system rather than checked by string-keyed lookups at call sites.
package core

// SessionSpec is the sealed interface implemented by the per-type creation
// requests. Only the spec types in this package implement it.
type SessionSpec interface {
	SessionType() SessionType
	// SessionName returns the requested human-readable name.
	SessionName() string
	sealed()
}

// IAMUserSpec requests an AWS IAM User session backed by a long-lived
// access key pair. The key pair goes to the vault, never to the record.
type IAMUserSpec struct {
	Name      string
	Region    string
	ProfileID string // optional, defaults to the workspace default profile
	MFADevice string // optional
	AccessKey string
	SecretKey string
}

func (IAMUserSpec) SessionType() SessionType { return TypeAWSIAMUser }
func (s IAMUserSpec) SessionName() string    { return s.Name }
func (IAMUserSpec) sealed()                  {}

// FederatedSpec requests an AWS IAM Role Federated session authenticated via
// a SAML identity provider URL. If the URL is not yet registered an IdpURL
// record is created as a side effect of session creation.
type FederatedSpec struct {
	Name      string
	Region    string
	RoleARN   string
	IdpURL    string // the provider URL, matched or created by string
	IdpARN    string
	ProfileID string // optional
}

func (FederatedSpec) SessionType() SessionType { return TypeAWSIAMRoleFederated }
func (s FederatedSpec) SessionName() string    { return s.Name }
func (FederatedSpec) sealed()                  {}

// ChainedSpec requests an AWS IAM Role Chained session whose credentials are
// derived by assuming a role with a parent session's credentials. The parent
// must be of a chainable type.
type ChainedSpec struct {
	Name            string
	Region          string
	RoleARN         string
	ParentSessionID string
	RoleSessionName string // optional
	ProfileID       string // optional
}

func (ChainedSpec) SessionType() SessionType { return TypeAWSIAMRoleChained }
func (s ChainedSpec) SessionName() string    { return s.Name }
func (ChainedSpec) sealed()                  {}

// SSORoleSpec requests an AWS SSO Role session derived from an integration.
// These are generated during integration sync, not created manually.
type SSORoleSpec struct {
	Name          string
	Region        string
	RoleARN       string
	IntegrationID string
	ProfileID     string // optional
}

func (SSORoleSpec) SessionType() SessionType { return TypeAWSSSORole }
func (s SSORoleSpec) SessionName() string    { return s.Name }
func (SSORoleSpec) sealed()                  {}

// AzureSpec requests an Azure session bound to a tenant and subscription.
type AzureSpec struct {
	Name           string
	Location       string
	TenantID       string
	SubscriptionID string
	IntegrationID  string // optional
}

func (AzureSpec) SessionType() SessionType { return TypeAzure }
func (s AzureSpec) SessionName() string    { return s.Name }
func (AzureSpec) sealed()                  {}
