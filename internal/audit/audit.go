// Package audit names the audited actions and provides mirror sinks.
//
// The system of record is the audit_log table, written in the same
// transaction as the change it describes. A Sink receives a copy of each
// entry after the transaction commits; a failing sink is logged and never
// undoes the committed change.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/rzn-members/internal/model"
)

// Audited actions.
const (
	ActionRegister      = "register"
	ActionLogin         = "login"
	ActionLogout        = "logout"
	ActionUpdateProfile = "update_profile"
	ActionApprove       = "approve_member"
	ActionDecline       = "decline_member"
	ActionDelete        = "delete_member"
	ActionSeed          = "seed_member"
)

// Sink receives committed audit entries.
type Sink interface {
	Append(ctx context.Context, entry model.AuditEntry) error
}

// Entry builds an entry for the caller.
func Entry(c model.Caller, actorID, action, detail string) model.AuditEntry {
	return model.AuditEntry{
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
		Origin:  c.Origin,
	}
}

// Detail strings.
func RegisterDetail(handle string) string { return "Registered " + handle }
func ApproveDetail(id string) string { return fmt.Sprintf("Approved member ID: %s", id) }
func DeclineDetail(id string) string { return fmt.Sprintf("Declined member ID: %s", id) }
func DeleteByHandleDetail(h string) string { return "Deleted member: " + h }
func DeleteByIDDetail(id string) string { return fmt.Sprintf("Deleted member ID: %s", id) }
func SeedDetail(handle string, role model.Role) string {
	return fmt.Sprintf("Seeded %s as %s", handle, role)
}

const (
	LoginDetail         = "User logged in"
	LogoutDetail        = "User logged out"
	UpdateProfileDetail = "Profile updated"
)

// LogSink mirrors entries to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e model.AuditEntry) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("actor", e.ActorID),
		slog.String("action", e.Action),
		slog.String("detail", e.Detail),
		slog.String("origin", e.Origin),
	)
	return nil
}

// Fanout delivers every entry to each sink and joins their errors.
type Fanout []Sink

func (f Fanout) Append(ctx context.Context, e model.AuditEntry) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, model.AuditEntry) error { return nil }
