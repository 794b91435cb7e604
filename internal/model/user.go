// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is a position in the membership hierarchy.
//
// The hierarchy is strict: pending < member < admin < leader. A role only
// ever changes from pending to member (approval); every other change is a
// deletion of the record.
type Role string

const (
	RolePending Role = "pending"
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
	RoleLeader  Role = "leader"
)

// AllRoles lists every role from highest to lowest rank.
var AllRoles = []Role{RoleLeader, RoleAdmin, RoleMember, RolePending}

// PublicRoles are the roles visible in the public directory and roster.
var PublicRoles = []Role{RoleLeader, RoleAdmin, RoleMember}

// Rank orders roles; an unknown role ranks below pending.
func (r Role) Rank() int {
	switch r {
	case RoleLeader:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RolePending:
		return 1
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// Staff reports whether r may review registrations.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleLeader
}

// ParseRole converts a stored or user-supplied role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("model: unknown role %q", s)
	}
	return r, nil
}

// Profile holds the user-editable social fields. Empty means unset.
type Profile struct {
	Avatar      string `json:"avatar"`
	FacebookURL string `json:"facebook_url"`
	YouTubeURL  string `json:"youtube_url"`
	TikTokURL   string `json:"tiktok_url"`
}

// User is a membership record.
//
// Handle and Contact are unique across all users; the storage layer enforces
// that with UNIQUE constraints. PasswordHash is a bcrypt hash and is never
// serialized.
type User struct {
	ID           string     `json:"id"`
	Handle       string     `json:"username"`
	Contact      string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Profile      Profile    `json:"profile"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CanonicalHandle prefixes handle with prefix unless it already carries it.
// Surrounding whitespace is dropped first.
func CanonicalHandle(prefix, handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.HasPrefix(handle, prefix) {
		return handle
	}
	return prefix + handle
}
