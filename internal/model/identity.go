package model

import "time"

// Identity is what a live session binds a request to.
type Identity struct {
	SessionID string
	UserID    string
	Handle    string
	Role      Role
}

// Caller describes who is invoking a service operation. It is built once
// per request and passed by value; services never read ambient state.
type Caller struct {
	Identity *Identity // nil for anonymous callers
	Origin   string    // client address, recorded in the audit log
}

// Anonymous returns a Caller with no identity.
func Anonymous(origin string) Caller {
	return Caller{Origin: origin}
}

func (c Caller) Authenticated() bool {
	return c.Identity != nil
}

// AuditEntry is one append-only record of a state-changing action.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}
