package contracts

import "time"

// IdentityStatus is the lifecycle state of an identity.
type IdentityStatus string

const (
	IdentityActive    IdentityStatus = "active"
	IdentitySuspended IdentityStatus = "suspended"
	IdentityRevoked   IdentityStatus = "revoked"
)

// CredentialStatus is the validity state of a credential.
type CredentialStatus string

const (
	CredentialValid   CredentialStatus = "valid"
	CredentialRevoked CredentialStatus = "revoked"
	CredentialExpired CredentialStatus = "expired"
)

// Credential is a verifiable claim about an identity. Issuance and
// signature verification happen upstream; the engine only consults
// IsCurrentlyValid.
type Credential struct {
	ID         string           `json:"id" yaml:"id"`
	IssuerID   string           `json:"issuer_id,omitempty" yaml:"issuer_id,omitempty"`
	SubjectID  string           `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	ClaimType  string           `json:"claim_type" yaml:"claim_type"`
	ClaimValue string           `json:"claim_value,omitempty" yaml:"claim_value,omitempty"`
	IssuedAt   time.Time        `json:"issued_at" yaml:"issued_at"`
	ValidFrom  *time.Time       `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
	Status     CredentialStatus `json:"status" yaml:"status"`
}

// IsCurrentlyValid reports whether the credential is valid at the given
// instant, based on status and the optional validity window.
func (c Credential) IsCurrentlyValid(at time.Time) bool {
	if c.Status != CredentialValid {
		return false
	}
	if c.ValidFrom != nil && at.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && at.After(*c.ValidUntil) {
		return false
	}
	return true
}

// Identity is a person, entity, or system component recognized by the
// governance system.
type Identity struct {
	ID          string         `json:"id" yaml:"id"`
	DisplayName string         `json:"display_name" yaml:"display_name"`
	Status      IdentityStatus `json:"status" yaml:"status"`
	Credentials []Credential   `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	RoleNames   []string       `json:"role_names,omitempty" yaml:"role_names,omitempty"`
}

// IsActive reports whether the identity may act at all.
func (i Identity) IsActive() bool {
	return i.Status == IdentityActive
}

// ValidClaimTypes returns the claim types of all credentials valid at the
// given instant.
func (i Identity) ValidClaimTypes(at time.Time) map[string]bool {
	out := make(map[string]bool)
	for _, c := range i.Credentials {
		if c.IsCurrentlyValid(at) {
			out[c.ClaimType] = true
		}
	}
	return out
}

// Role is a named bundle of permissions, gated on required credential
// claim types.
type Role struct {
	Name                    string   `json:"name" yaml:"name"`
	Description             string   `json:"description,omitempty" yaml:"description,omitempty"`
	RequiredCredentialTypes []string `json:"required_credential_types,omitempty" yaml:"required_credential_types,omitempty"`
	Permissions             []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// HasPermission reports whether the role grants the named permission.
func (r Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}
