package service

import (
	"context"

	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/policy"
	"github.com/sakif/rzn-members/internal/repository"
)

// ListMembers is the public directory: approved users only, ranked, then by
// handle. Pending registrations never appear here.
func (s *MembershipService) ListMembers(ctx context.Context) ([]model.User, error) {
	return s.publicList(ctx, "getMembers", policy.ActionViewDirectory, repository.UserFilter{
		Roles: model.PublicRoles,
		Order: repository.OrderDirectory,
	})
}

// ListLeaders is the public leadership roster: the leader and the admins,
// longest-serving first.
func (s *MembershipService) ListLeaders(ctx context.Context) ([]model.User, error) {
	return s.publicList(ctx, "getLeaders", policy.ActionViewLeaders, repository.UserFilter{
		Roles: []model.Role{model.RoleLeader, model.RoleAdmin},
		Order: repository.OrderRoster,
	})
}

func (s *MembershipService) publicList(ctx context.Context, op string, action policy.Action, filter repository.UserFilter) ([]model.User, error) {
	if err := policy.CanPerform(policy.Request{Action: action}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	users, err := s.store.Users().List(ctx, filter)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	return users, s.finish(ctx, op, nil)
}
