package policy

import "github.com/adamscao/protocolreg/internal/models"

// Allows reports whether a caller holding actual satisfies required
func Allows(required, actual models.Role) bool {
	switch required {
	case models.RoleAdmin:
		return actual == models.RoleAdmin
	case models.RoleUser:
		return actual == models.RoleAdmin || actual == models.RoleUser
	default:
		return false
	}
}

// CanEditProtocol reports whether the actor may update the protocol:
// admins always, others only for protocols they created
func CanEditProtocol(actor models.Actor, p *models.Protocol) bool {
	if p == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == models.RoleUser && actor.UserID != 0 && actor.UserID == p.CreatedBy
}

// CanDeleteProtocol reports whether the actor may delete protocols
func CanDeleteProtocol(actor models.Actor) bool {
	return Allows(models.RoleAdmin, actor.Role)
}

// CanManageUsers reports whether the actor may create, update or delete accounts
func CanManageUsers(actor models.Actor) bool {
	return Allows(models.RoleAdmin, actor.Role)
}

// CanManageAccount reports whether the actor may change credentials of the target account
func CanManageAccount(actor models.Actor, targetID int64) bool {
	if actor.IsAdmin() {
		return true
	}
	return Allows(models.RoleUser, actor.Role) && actor.UserID != 0 && actor.UserID == targetID
}

// CanViewAudit reports whether the actor may read the audit log
func CanViewAudit(actor models.Actor) bool {
	return Allows(models.RoleAdmin, actor.Role)
}
