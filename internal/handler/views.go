package handler

import (
	"time"

	"github.com/sakif/rzn-members/internal/model"
)

// The API never serializes model.User directly. Each listing gets its own
// view so contact addresses only reach staff.

// memberView is a user as the public directory and its owner see it.
type memberView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	Avatar      string `json:"avatar"`
	FacebookURL string `json:"facebook_url"`
	YouTubeURL  string `json:"youtube_url"`
	TikTokURL   string `json:"tiktok_url"`
}

func newMemberView(u *model.User) memberView {
	return memberView{
		ID:          u.ID,
		Username:    u.Handle,
		Role:        u.Role.String(),
		Avatar:      u.Profile.Avatar,
		FacebookURL: u.Profile.FacebookURL,
		YouTubeURL:  u.Profile.YouTubeURL,
		TikTokURL:   u.Profile.TikTokURL,
	}
}

func memberViews(users []model.User) []memberView {
	out := make([]memberView, 0, len(users))
	for i := range users {
		out = append(out, newMemberView(&users[i]))
	}
	return out
}

// leaderView is a roster entry; the roster does not expose ids.
type leaderView struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	Avatar      string `json:"avatar"`
	FacebookURL string `json:"facebook_url"`
	YouTubeURL  string `json:"youtube_url"`
	TikTokURL   string `json:"tiktok_url"`
}

func leaderViews(users []model.User) []leaderView {
	out := make([]leaderView, 0, len(users))
	for _, u := range users {
		out = append(out, leaderView{
			Username:    u.Handle,
			Role:        u.Role.String(),
			Avatar:      u.Profile.Avatar,
			FacebookURL: u.Profile.FacebookURL,
			YouTubeURL:  u.Profile.YouTubeURL,
			TikTokURL:   u.Profile.TikTokURL,
		})
	}
	return out
}

// staffView is a row in the admin panel.
type staffView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func staffViews(users []model.User) []staffView {
	out := make([]staffView, 0, len(users))
	for _, u := range users {
		out = append(out, staffView{
			ID:        u.ID,
			Username:  u.Handle,
			Email:     u.Contact,
			Role:      u.Role.String(),
			CreatedAt: u.CreatedAt,
		})
	}
	return out
}

type auditView struct {
	ID        int64     `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	Origin    string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

func auditViews(entries []model.AuditEntry) []auditView {
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView(e))
	}
	return out
}
