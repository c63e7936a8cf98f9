package portal

import (
	"fmt"
	"time"

	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/failure"
)

type Role string

const (
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
)

// Portal is the platform account. Owner never changes after creation.
type Portal struct {
	ID        string    `json:"id" db:"portal_id"`
	Owner     string    `json:"owner" db:"owner"`
	CapHash   []byte    `json:"-" db:"cap_hash"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Administrator struct {
	PortalID  string    `json:"portalId" db:"portal_id"`
	Identity  string    `json:"identity" db:"identity"`
	CapHash   []byte    `json:"-" db:"cap_hash"`
	Seq       int64     `json:"-" db:"seq"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RoleOf resolves the authority c carries on p. admin is the administrator
// record of c.Holder, or nil when the holder is not one.
func (p Portal) RoleOf(c capability.Capability, admin *Administrator) (Role, error) {
	if c.PortalID != p.ID {
		return "", fmt.Errorf("%w: capability is bound to portal[%s]", failure.ErrUnauthorized, c.PortalID)
	}

	if c.Holder == p.Owner && c.Matches(p.CapHash) {
		return RoleOwner, nil
	}

	if admin != nil && admin.PortalID == p.ID && admin.Identity == c.Holder && c.Matches(admin.CapHash) {
		return RoleAdmin, nil
	}

	return "", fmt.Errorf("%w: capability of %q does not match portal[%s]", failure.ErrUnauthorized, c.Holder, p.ID)
}

// Allow fails unless role is one of allowed.
func Allow(role Role, allowed ...Role) error {
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this operation", failure.ErrUnauthorized, role)
}
