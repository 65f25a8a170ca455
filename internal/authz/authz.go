// Package authz is the capability check applied at the top of every
// admin-gated operation.
package authz

import (
	"github.com/google/uuid"

	"github.com/veriqo/server/internal/apperr"
	"github.com/veriqo/server/internal/model"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// RequireAdmin returns a Forbidden error unless the actor holds the
// ADMIN role.
func RequireAdmin(actor Actor) error {
	if actor.Role != model.RoleAdmin {
		return apperr.Forbidden("Forbidden resource")
	}
	return nil
}
