// Package policy is the single source of truth for who may do what to whom.
//
// Every membership operation asks CanPerform before touching storage. The
// function is pure: it sees roles and ids, never the database, so the whole
// rule set is unit-testable as a table.
//
// RULE ORDER (first failing rule wins):
//
//  1. actor-role gate       anonymous → not logged in; wrong role → forbidden
//  2. self-protection       leader targeting itself → self action
//  3. target role / state   approve/decline need pending; admins only delete members
//
// A Request with an empty TargetRole skips phase 3. Services use that to
// reject a caller before they load the target, then call again with the
// target's role filled in.
package policy

import (
	"fmt"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/model"
)

// Action is a closed set of operations that need an authorization decision.
type Action int

const (
	ActionUnspecified Action = iota
	ActionViewDirectory
	ActionViewLeaders
	ActionViewSelf
	ActionEditProfile
	ActionListPending
	ActionApprove
	ActionDecline
	ActionListAll
	ActionDeleteMember      // leader path
	ActionDeleteMemberAdmin // admin path
	ActionViewAuditLog
)

var actionNames = map[Action]string{
	ActionUnspecified:       "unspecified",
	ActionViewDirectory:     "view_directory",
	ActionViewLeaders:       "view_leaders",
	ActionViewSelf:          "view_self",
	ActionEditProfile:       "edit_profile",
	ActionListPending:       "list_pending",
	ActionApprove:           "approve",
	ActionDecline:           "decline",
	ActionListAll:           "list_all",
	ActionDeleteMember:      "delete_member",
	ActionDeleteMemberAdmin: "delete_member_admin",
	ActionViewAuditLog:      "view_audit_log",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Denial messages.
const (
	MsgAdminRequired       = "Admin access required"
	MsgLeaderRequired      = "Leader access required"
	MsgSelfDelete          = "You cannot delete your own account"
	MsgProtectedTarget     = "You cannot delete admin or leader accounts"
	MsgNotPending          = "Member is not pending approval"
	MsgPendingNotDeletable = "Pending registrations must be declined, not deleted"
	MsgAccessDenied        = "Access denied"
)

// ErrUnknownAction marks a request whose Action is outside the closed set.
// It wraps apperror.ErrForbidden; the caller only ever sees MsgAccessDenied.
var ErrUnknownAction = fmt.Errorf("%w: unknown action", apperror.ErrForbidden)

// Request is the input to CanPerform.
type Request struct {
	Action     Action
	ActorID    string
	ActorRole  model.Role // empty for anonymous callers
	TargetID   string
	TargetRole model.Role // empty when the target has not been loaded
}

// CanPerform returns nil when the request is allowed and an *apperror.AppError
// describing the denial otherwise.
func CanPerform(req Request) error {
	if err := gate(req); err != nil {
		return err
	}
	if err := selfProtection(req); err != nil {
		return err
	}
	if req.TargetRole == "" {
		return nil
	}
	return targetRules(req)
}

// VisibleRoles returns the roles the actor may see in the all-members view.
// A leader sees every role; an admin sees only members and pending
// registrations, never other admins or the leader.
func VisibleRoles(actor model.Role) []model.Role {
	switch actor {
	case model.RoleLeader:
		return []model.Role{model.RoleLeader, model.RoleAdmin, model.RoleMember, model.RolePending}
	case model.RoleAdmin:
		return []model.Role{model.RoleMember, model.RolePending}
	default:
		return nil
	}
}

func gate(req Request) error {
	switch req.Action {
	case ActionViewDirectory, ActionViewLeaders:
		return nil

	case ActionViewSelf, ActionEditProfile:
		if req.ActorRole == "" {
			return apperror.Unauthenticated()
		}
		if req.ActorRole == model.RolePending {
			return apperror.Forbidden(apperror.MsgPendingApproval)
		}
		return nil

	case ActionListPending, ActionApprove, ActionDecline, ActionListAll, ActionDeleteMemberAdmin:
		if req.ActorRole == "" {
			return apperror.Unauthenticated()
		}
		if !req.ActorRole.Staff() {
			return apperror.Forbidden(MsgAdminRequired)
		}
		return nil

	case ActionDeleteMember, ActionViewAuditLog:
		if req.ActorRole == "" {
			return apperror.Unauthenticated()
		}
		if req.ActorRole != model.RoleLeader {
			return apperror.Forbidden(MsgLeaderRequired)
		}
		return nil

	default:
		return &apperror.AppError{
			Err:     fmt.Errorf("%w %s", ErrUnknownAction, req.Action),
			Message: MsgAccessDenied,
		}
	}
}

// selfProtection only guards the leader. Admins cannot target themselves
// anyway, because the admin delete path refuses every admin target.
func selfProtection(req Request) error {
	switch req.Action {
	case ActionDeleteMember, ActionDeleteMemberAdmin:
		if req.ActorRole == model.RoleLeader && req.TargetID != "" && req.TargetID == req.ActorID {
			return apperror.SelfAction(MsgSelfDelete)
		}
	}
	return nil
}

func targetRules(req Request) error {
	switch req.Action {
	case ActionApprove, ActionDecline:
		if req.TargetRole != model.RolePending {
			return apperror.InvalidState(MsgNotPending)
		}
		return nil

	case ActionDeleteMemberAdmin:
		if req.ActorRole == model.RoleLeader {
			return nil
		}
		switch req.TargetRole {
		case model.RoleMember:
			return nil
		case model.RoleAdmin, model.RoleLeader:
			return apperror.Forbidden(MsgProtectedTarget)
		default:
			return apperror.InvalidState(MsgPendingNotDeletable)
		}

	default:
		return nil
	}
}
