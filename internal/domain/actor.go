package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of identities the auth middleware may assert.
type Role string

const (
	RoleAdvertiser     Role = "advertiser"
	RoleContentCreator Role = "content_creator"
	RoleSuperAdmin     Role = "super_admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdvertiser, RoleContentCreator, RoleSuperAdmin:
		return r, nil
	default:
		return "", Validationf("unknown role %q", s)
	}
}

// OwnerKind maps a role to the wallet kind it owns. Super admins hold no
// wallet.
func (r Role) OwnerKind() (OwnerKind, error) {
	switch r {
	case RoleAdvertiser:
		return OwnerAdvertiser, nil
	case RoleContentCreator:
		return OwnerContentCreator, nil
	case RoleSuperAdmin:
		return "", Validationf("super admins do not own wallets")
	default:
		return "", Validationf("unknown role %q", r)
	}
}

// Actor is the verified caller identity supplied by the auth middleware.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func (a Actor) Require(role Role) error {
	if a.UserID == uuid.Nil {
		return Unauthorizedf("missing caller identity")
	}
	if a.Role != role {
		return Unauthorizedf("%s role required, caller is %s", role, a.Role)
	}
	return nil
}

// CanRead reports whether the actor may see data owned by ownerID.
func (a Actor) CanRead(ownerID uuid.UUID) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdvertiser, RoleContentCreator:
		return a.UserID == ownerID
	default:
		return false
	}
}
