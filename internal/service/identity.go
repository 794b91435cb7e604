package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/policy"
	"github.com/sakif/rzn-members/internal/repository"
)

// Input limits.
const (
	MaxHandleLength  = 64
	MaxContactLength = 254
	MaxURLLength     = 2048
)

// Messages returned by the identity operations.
const (
	MsgFieldsRequired     = "All fields are required"
	MsgCredentialsMissing = "Username and password are required"
	MsgSecretTooLong      = "Password must be 72 bytes or fewer"
	MsgHandleTooLong      = "Username is too long"
	MsgContactInvalid     = "Please enter a valid email address"
)

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Handle  string
	Contact string
	Secret  string
}

// Register creates a pending user. The handle gets the organizational prefix
// exactly once. Uniqueness of handle and contact is left to the store's
// constraints; a collision comes back as ErrConflict.
func (s *MembershipService) Register(ctx context.Context, c model.Caller, in RegisterInput) (*model.User, error) {
	const op = "register"

	handle := strings.TrimSpace(in.Handle)
	contact := strings.TrimSpace(in.Contact)
	canonical := model.CanonicalHandle(s.prefix, handle)

	switch {
	case handle == "" || contact == "" || in.Secret == "":
		return nil, s.finish(ctx, op, apperror.ValidationFailed("", MsgFieldsRequired))
	case len(in.Secret) > auth.MaxSecretBytes:
		return nil, s.finish(ctx, op, apperror.ValidationFailed("password", MsgSecretTooLong))
	case utf8.RuneCountInString(canonical) > MaxHandleLength:
		return nil, s.finish(ctx, op, apperror.ValidationFailed("username", MsgHandleTooLong))
	case !validContact(contact):
		return nil, s.finish(ctx, op, apperror.ValidationFailed("email", MsgContactInvalid))
	}

	hash, err := s.passwords.Hash(in.Secret)
	if err != nil {
		return nil, s.finish(ctx, op, fmt.Errorf("hashing secret: %w", err))
	}

	user := &model.User{
		Handle:       canonical,
		Contact:      contact,
		PasswordHash: hash,
		Role:         model.RolePending,
		CreatedAt:    s.now(),
	}

	var entry model.AuditEntry
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		entry = audit.Entry(c, user.ID, audit.ActionRegister, audit.RegisterDetail(user.Handle))
		return tx.Audit().Append(ctx, entry)
	})
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)

	s.logger.InfoContext(ctx, "member registered",
		slog.String("userID", user.ID),
		slog.String("handle", user.Handle),
	)
	return user, s.finish(ctx, op, nil)
}

func validContact(contact string) bool {
	if len(contact) > MaxContactLength {
		return false
	}
	addr, err := mail.ParseAddress(contact)
	return err == nil && addr.Address == contact
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token    string
	Identity model.Identity
	User     *model.User
}

// Authenticate checks credentials and opens a session.
//
// An unknown handle and a wrong secret produce the same error and cost the
// same bcrypt work. Only after the secret is verified does a pending account
// learn that it is pending.
func (s *MembershipService) Authenticate(ctx context.Context, c model.Caller, handle, secret string) (*LoginResult, error) {
	const op = "login"

	handle = strings.TrimSpace(handle)
	if handle == "" || secret == "" {
		return nil, s.finish(ctx, op, apperror.ValidationFailed("", MsgCredentialsMissing))
	}

	user, err := s.store.Users().GetByHandle(ctx, model.CanonicalHandle(s.prefix, handle))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(secret)
			return nil, s.finish(ctx, op, apperror.InvalidCredentials())
		}
		return nil, s.finish(ctx, op, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, secret); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			s.logger.WarnContext(ctx, "stored password hash is unreadable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, s.finish(ctx, op, apperror.InvalidCredentials())
	}

	if user.Role == model.RolePending {
		return nil, s.finish(ctx, op, apperror.PendingApproval())
	}

	token, id, err := s.sessions.Create(user.ID, user.Handle, user.Role)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	entry := audit.Entry(c, user.ID, audit.ActionLogin, audit.LoginDetail)
	if err := s.store.Audit().Append(ctx, entry); err != nil {
		s.sessions.End(id.SessionID)
		return nil, s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)

	return &LoginResult{Token: token, Identity: id, User: user}, s.finish(ctx, op, nil)
}

// EndSession destroys the caller's session. Ending a session that does not
// exist succeeds and writes no audit entry.
func (s *MembershipService) EndSession(ctx context.Context, c model.Caller) error {
	const op = "logout"

	if c.Identity == nil || !s.sessions.End(c.Identity.SessionID) {
		return s.finish(ctx, op, nil)
	}

	entry := audit.Entry(c, c.Identity.UserID, audit.ActionLogout, audit.LogoutDetail)
	if err := s.store.Audit().Append(ctx, entry); err != nil {
		return s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)
	return s.finish(ctx, op, nil)
}

// CurrentIdentity returns the caller's identity or a not-logged-in error.
func (s *MembershipService) CurrentIdentity(c model.Caller) (model.Identity, error) {
	if c.Identity == nil {
		return model.Identity{}, apperror.Unauthenticated()
	}
	return *c.Identity, nil
}

// CurrentUser loads the caller's own record.
func (s *MembershipService) CurrentUser(ctx context.Context, c model.Caller) (*model.User, error) {
	const op = "getCurrentUser"

	actorID, role := actor(c)
	if err := policy.CanPerform(policy.Request{Action: policy.ActionViewSelf, ActorID: actorID, ActorRole: role}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	user, err := s.store.Users().GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Deleted while the session was live.
			s.sessions.EndUser(actorID)
			return nil, s.finish(ctx, op, apperror.Unauthenticated())
		}
		return nil, s.finish(ctx, op, err)
	}
	return user, s.finish(ctx, op, nil)
}

// ProfileInput carries the profile fields to overwrite. A nil field keeps
// its current value; an empty string clears it.
type ProfileInput struct {
	Avatar      *string
	FacebookURL *string
	YouTubeURL  *string
	TikTokURL   *string
}

// UpdateProfile overwrites the caller's own profile. There is no way to
// address another user's profile.
func (s *MembershipService) UpdateProfile(ctx context.Context, c model.Caller, in ProfileInput) (*model.User, error) {
	const op = "updateProfile"

	actorID, role := actor(c)
	if err := policy.CanPerform(policy.Request{Action: policy.ActionEditProfile, ActorID: actorID, ActorRole: role}); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	in = ProfileInput{
		Avatar:      trimmed(in.Avatar),
		FacebookURL: trimmed(in.FacebookURL),
		YouTubeURL:  trimmed(in.YouTubeURL),
		TikTokURL:   trimmed(in.TikTokURL),
	}

	links := []struct {
		field string
		value *string
	}{
		{"facebook_url", in.FacebookURL},
		{"youtube_url", in.YouTubeURL},
		{"tiktok_url", in.TikTokURL},
	}
	for _, l := range links {
		if l.value == nil {
			continue
		}
		if err := validateLink(l.field, *l.value); err != nil {
			return nil, s.finish(ctx, op, err)
		}
	}
	if in.Avatar != nil && len(*in.Avatar) > MaxURLLength {
		return nil, s.finish(ctx, op, apperror.ValidationFailed("avatar", "avatar is too long"))
	}

	var (
		user  *model.User
		entry model.AuditEntry
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, actorID)
		if err != nil {
			return err
		}

		applyProfile(&user.Profile, in)
		if err := tx.Users().UpdateProfile(ctx, user.ID, user.Profile); err != nil {
			return err
		}

		entry = audit.Entry(c, actorID, audit.ActionUpdateProfile, audit.UpdateProfileDetail)
		return tx.Audit().Append(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			err = apperror.Unauthenticated()
		}
		return nil, s.finish(ctx, op, err)
	}
	s.mirror(ctx, entry)

	return user, s.finish(ctx, op, nil)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func applyProfile(p *model.Profile, in ProfileInput) {
	if in.Avatar != nil {
		p.Avatar = *in.Avatar
	}
	if in.FacebookURL != nil {
		p.FacebookURL = *in.FacebookURL
	}
	if in.YouTubeURL != nil {
		p.YouTubeURL = *in.YouTubeURL
	}
	if in.TikTokURL != nil {
		p.TikTokURL = *in.TikTokURL
	}
}

// validateLink accepts an empty value or an absolute http(s) URL.
func validateLink(field, raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxURLLength {
		return apperror.ValidationFailed(field, field+" is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed(field, field+" must be an http or https URL")
	}
	return nil
}
