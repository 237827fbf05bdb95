package models

// Actor is the authenticated caller of a core operation
type Actor struct {
	UserID      int64
	Login       string
	Role        Role
	SessionID   int64
	SourceIP    string
	ClientAgent string
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ActorID returns the id for audit attribution, nil for the system
func (a Actor) ActorID() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// System is the actor used for bootstrap and other unattended writes
var System = Actor{Role: RoleAdmin, ClientAgent: "system"}
