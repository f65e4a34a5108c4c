package domain

import "github.com/google/uuid"

// Roles carried by platform-issued tokens.
const (
	RoleAdmin   = "admin"
	RoleService = "service"
	RoleUser    = "user"
)

// Principal is the authenticated caller supplied by the identity platform.
// The engine consumes it; issuing and refreshing credentials happens
// elsewhere.
type Principal struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
	Role      string
}

// CanPublish reports whether the principal may call the event publish
// endpoint. Only business services and admins broadcast events.
func (p *Principal) CanPublish() bool {
	return p.Role == RoleAdmin || p.Role == RoleService
}
