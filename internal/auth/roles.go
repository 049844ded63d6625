package auth

import (
	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

// Requirement is one acceptable caller for an operation. The -self
// variants additionally require that the caller is acting on their own
// username.
type Requirement string

const (
	RequirePlayer     Requirement = "player"
	RequireHost       Requirement = "host"
	RequireAdmin      Requirement = "admin"
	RequirePlayerSelf Requirement = "player-self"
	RequireAdminSelf  Requirement = "admin-self"
)

// OperationRoles maps each restricted operation to the callers allowed
// to invoke it. Operations absent from the map are unrestricted.
var OperationRoles = map[string][]Requirement{
	"leaveGame":      {RequirePlayerSelf, RequireAdminSelf},
	"submitTask":     {RequirePlayerSelf},
	"viewPlayerInfo": {RequireHost, RequireAdmin, RequirePlayerSelf},
	"viewTaskInfo":   {RequirePlayer},
	"viewGameInfo":   {RequirePlayer},

	"startGame":        {RequireHost, RequireAdmin},
	"kickPlayer":       {RequireHost, RequireAdmin},
	"kickAllPlayers":   {RequireHost, RequireAdmin},
	"lockGame":         {RequireHost, RequireAdmin},
	"unlockGame":       {RequireHost, RequireAdmin},
	"viewTaskHostInfo": {RequireHost, RequireAdmin},
	"viewGameHostInfo": {RequireHost, RequireAdmin},

	"removeAdmin": {RequireHost},
	"endGame":     {RequireHost},
}

// Authorize checks identity against the role predicate for operation.
// target is the username the operation acts on, for the -self variants.
func Authorize(identity Identity, operation, target string) error {
	requirements, restricted := OperationRoles[operation]
	if !restricted {
		return nil
	}
	for _, req := range requirements {
		switch req {
		case RequirePlayer:
			if identity.Role == "player" {
				return nil
			}
		case RequireHost:
			if identity.Role == "host" {
				return nil
			}
		case RequireAdmin:
			if identity.Role == "admin" {
				return nil
			}
		case RequirePlayerSelf:
			if identity.Role == "player" && identity.Username == target {
				return nil
			}
		case RequireAdminSelf:
			if identity.Role == "admin" && identity.Username == target {
				return nil
			}
		}
	}
	return apperr.New(apperr.InvalidPermissions, "role %s cannot perform %s", identity.Role, operation)
}
