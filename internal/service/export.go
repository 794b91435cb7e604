package service

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/repository"
)

// RosterEntry is one approved user in a roster export. Contact addresses and
// pending registrations are never exported.
type RosterEntry struct {
	Handle      string `yaml:"handle"`
	Role        string `yaml:"role"`
	Since       string `yaml:"since"`
	Avatar      string `yaml:"avatar,omitempty"`
	FacebookURL string `yaml:"facebook_url,omitempty"`
	YouTubeURL  string `yaml:"youtube_url,omitempty"`
	TikTokURL   string `yaml:"tiktok_url,omitempty"`
}

// RosterExport is the top-level YAML document.
type RosterExport struct {
	Members []RosterEntry `yaml:"members"`
}

// ExportRoster renders the public directory as YAML, in directory order.
func (s *MembershipService) ExportRoster(ctx context.Context) ([]byte, error) {
	const op = "exportRoster"

	users, err := s.store.Users().List(ctx, repository.UserFilter{
		Roles: model.PublicRoles,
		Order: repository.OrderDirectory,
	})
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	export := RosterExport{Members: make([]RosterEntry, 0, len(users))}
	for _, u := range users {
		export.Members = append(export.Members, RosterEntry{
			Handle:      u.Handle,
			Role:        u.Role.String(),
			Since:       u.CreatedAt.UTC().Format(time.RFC3339),
			Avatar:      u.Profile.Avatar,
			FacebookURL: u.Profile.FacebookURL,
			YouTubeURL:  u.Profile.YouTubeURL,
			TikTokURL:   u.Profile.TikTokURL,
		})
	}

	out, err := yaml.Marshal(&export)
	if err != nil {
		return nil, s.finish(ctx, op, fmt.Errorf("encoding roster: %w", err))
	}
	return out, s.finish(ctx, op, nil)
}
