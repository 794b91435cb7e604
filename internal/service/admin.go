package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/policy"
	"github.com/sakif/rzn-members/internal/repository"
)

// MsgMemberIDRequired is returned when an admin operation names no target.
const MsgMemberIDRequired = "Member ID is required"

// ListPending returns pending registrations, newest first.
func (s *MembershipService) ListPending(ctx context.Context, c model.Caller) ([]model.User, error) {
	const op = "getPendingMembers"

	actorID, role := actor(c)
	if err := policy.CanPerform(policy.Request{Action: policy.ActionListPending, ActorID: actorID, ActorRole: role}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	users, err := s.store.Users().List(ctx, repository.UserFilter{
		Roles: []model.Role{model.RolePending},
		Order: repository.OrderNewestFirst,
	})
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	return users, s.finish(ctx, op, nil)
}

// Approve promotes a pending registration to member and records who did it.
// Approving anything that is not pending is a state error, so a second
// approval of the same user fails.
func (s *MembershipService) Approve(ctx context.Context, c model.Caller, targetID string) error {
	const op = "approveMember"

	entry, err := s.reviewTarget(ctx, c, policy.ActionApprove, targetID, func(tx repository.Tx, target *model.User) (model.AuditEntry, error) {
		if err := tx.Users().Approve(ctx, target.ID, c.Identity.UserID, s.now()); err != nil {
			return model.AuditEntry{}, err
		}
		return audit.Entry(c, c.Identity.UserID, audit.ActionApprove, audit.ApproveDetail(target.ID)), nil
	})
	if err != nil {
		return s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)

	s.logger.InfoContext(ctx, "member approved",
		slog.String("targetID", targetID),
		slog.String("approverID", c.Identity.UserID),
	)
	return s.finish(ctx, op, nil)
}

// Decline deletes a pending registration outright.
func (s *MembershipService) Decline(ctx context.Context, c model.Caller, targetID string) error {
	const op = "declineMember"

	entry, err := s.reviewTarget(ctx, c, policy.ActionDecline, targetID, func(tx repository.Tx, target *model.User) (model.AuditEntry, error) {
		if err := tx.Users().DeletePending(ctx, target.ID); err != nil {
			return model.AuditEntry{}, err
		}
		return audit.Entry(c, c.Identity.UserID, audit.ActionDecline, audit.DeclineDetail(target.ID)), nil
	})
	if err != nil {
		return s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)
	return s.finish(ctx, op, nil)
}

// AllMembers is the admin panel listing together with the viewer's role.
type AllMembers struct {
	Members     []model.User
	CurrentRole model.Role
}

// ListAll returns the rows the caller may manage. A leader sees every role,
// ranked, newest first within a rank. An admin sees members and pending
// registrations only, newest first.
func (s *MembershipService) ListAll(ctx context.Context, c model.Caller) (*AllMembers, error) {
	const op = "getAllMembers"

	actorID, role := actor(c)
	if err := policy.CanPerform(policy.Request{Action: policy.ActionListAll, ActorID: actorID, ActorRole: role}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	order := repository.OrderNewestFirst
	if role == model.RoleLeader {
		order = repository.OrderRankNewestFirst
	}

	users, err := s.store.Users().List(ctx, repository.UserFilter{
		Roles: policy.VisibleRoles(role),
		Order: order,
	})
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	return &AllMembers{Members: users, CurrentRole: role}, s.finish(ctx, op, nil)
}

// DeleteMember is the leader's delete: any target except the leader itself.
func (s *MembershipService) DeleteMember(ctx context.Context, c model.Caller, targetID string) error {
	return s.deleteMember(ctx, c, "deleteMember", policy.ActionDeleteMember, targetID, func(target *model.User) string {
		return audit.DeleteByHandleDetail(target.Handle)
	})
}

// DeleteMemberAdmin is the admin panel delete. Plain admins may only remove
// members; a leader calling it gets the leader rules.
func (s *MembershipService) DeleteMemberAdmin(ctx context.Context, c model.Caller, targetID string) error {
	return s.deleteMember(ctx, c, "deleteMemberAdmin", policy.ActionDeleteMemberAdmin, targetID, func(target *model.User) string {
		return audit.DeleteByIDDetail(target.ID)
	})
}

func (s *MembershipService) deleteMember(
	ctx context.Context,
	c model.Caller,
	op string,
	action policy.Action,
	targetID string,
	detail func(*model.User) string,
) error {
	entry, err := s.reviewTarget(ctx, c, action, targetID, func(tx repository.Tx, target *model.User) (model.AuditEntry, error) {
		if err := tx.Users().Delete(ctx, target.ID); err != nil {
			return model.AuditEntry{}, err
		}
		return audit.Entry(c, c.Identity.UserID, audit.ActionDelete, detail(target)), nil
	})
	if err != nil {
		return s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)

	if n := s.sessions.EndUser(strings.TrimSpace(targetID)); n > 0 {
		s.logger.InfoContext(ctx, "revoked sessions of deleted member",
			slog.String("targetID", targetID),
			slog.Int("sessions", n),
		)
	}
	return s.finish(ctx, op, nil)
}

// reviewTarget is the shared shape of every targeted staff operation:
//
//  1. policy check on the caller alone (gate and self-protection)
//  2. load the target inside a transaction
//  3. policy check again with the target's role
//  4. mutate and append the audit entry in the same transaction
func (s *MembershipService) reviewTarget(
	ctx context.Context,
	c model.Caller,
	action policy.Action,
	targetID string,
	mutate func(tx repository.Tx, target *model.User) (model.AuditEntry, error),
) (model.AuditEntry, error) {
	actorID, role := actor(c)
	targetID = strings.TrimSpace(targetID)

	req := policy.Request{Action: action, ActorID: actorID, ActorRole: role, TargetID: targetID}
	if err := policy.CanPerform(req); err != nil {
		return model.AuditEntry{}, err
	}
	if targetID == "" {
		return model.AuditEntry{}, apperror.ValidationFailed("member_id", MsgMemberIDRequired)
	}

	var entry model.AuditEntry
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		target, err := tx.Users().GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		req.TargetRole = target.Role
		if err := policy.CanPerform(req); err != nil {
			return err
		}

		entry, err = mutate(tx, target)
		if err != nil {
			return err
		}
		return tx.Audit().Append(ctx, entry)
	})
	return entry, err
}

// ActivityLog returns the newest audit entries. Leader only.
func (s *MembershipService) ActivityLog(ctx context.Context, c model.Caller, limit int) ([]model.AuditEntry, error) {
	const op = "getActivityLog"

	actorID, role := actor(c)
	if err := policy.CanPerform(policy.Request{Action: policy.ActionViewAuditLog, ActorID: actorID, ActorRole: role}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	entries, err := s.store.Audit().List(ctx, limit)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	return entries, s.finish(ctx, op, nil)
}
