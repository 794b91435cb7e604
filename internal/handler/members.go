package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/service"
)

// Messages sent on success, and for requests that never reach the service.
const (
	MsgRegistered       = "Registration successful! Please wait for admin approval."
	MsgProfileUpdated   = "Profile updated successfully"
	MsgApproved         = "Member approved successfully"
	MsgDeclined         = "Member declined successfully"
	MsgDeleted          = "Member deleted successfully"
	MsgInvalidAction    = "Invalid action"
	MsgMethodNotAllowed = "This action requires POST"
	MsgBadRequest       = "Malformed request"
)

// MembersHandler serves every membership operation over one JSON API.
//
// ROUTES:
//
//	GET|POST /api/{operation}   e.g. POST /api/approveMember
//	GET|POST /api?action=...    the form the legacy browser client sends
//
// Both decode the same input and go through dispatch, so there is exactly
// one place that maps an Operation to a service call.
type MembersHandler struct {
	svc           *service.MembershipService
	logger        *slog.Logger
	secureCookies bool
}

// NewMembersHandler creates a MembersHandler. secureCookies marks the
// session cookie Secure; turn it on whenever the site is served over HTTPS.
func NewMembersHandler(svc *service.MembershipService, logger *slog.Logger, secureCookies bool) *MembersHandler {
	return &MembersHandler{svc: svc, logger: logger, secureCookies: secureCookies}
}

// HandleOperation serves /api/{operation}.
func (h *MembersHandler) HandleOperation(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "operation"))
}

// HandleLegacy serves /api with the operation named by the action field.
func (h *MembersHandler) HandleLegacy(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

func (h *MembersHandler) serve(w http.ResponseWriter, r *http.Request, name string) {
	in, err := decodeInput(w, r)
	if err != nil {
		h.logger.Debug("rejecting malformed request", slog.String("error", err.Error()))
		writeFailure(w, http.StatusBadRequest, "validation_error", MsgBadRequest)
		return
	}
	if name == "" {
		name = in.Action
	}

	op, ok := ParseOperation(name)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "invalid_action", MsgInvalidAction)
		return
	}
	if op.Mutating() && r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeFailure(w, http.StatusMethodNotAllowed, "method_not_allowed", MsgMethodNotAllowed)
		return
	}

	h.dispatch(w, r, op, in)
}

// dispatch covers every Operation. A new Operation without a case here
// falls to the default and is reported as an invalid action.
func (h *MembersHandler) dispatch(w http.ResponseWriter, r *http.Request, op Operation, in *input) {
	ctx := r.Context()
	c := callerFrom(r)

	switch op {
	case OpRegister:
		_, err := h.svc.Register(ctx, c, service.RegisterInput{
			Handle:  in.Username,
			Contact: in.Email,
			Secret:  in.Password,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, MsgRegistered, nil)

	case OpLogin:
		res, err := h.svc.Authenticate(ctx, c, in.Username, in.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		auth.SetSessionCookie(w, res.Token, h.svc.Sessions().TTL(), h.secureCookies)
		writeOK(w, "", envelope{"user": newMemberView(res.User)})

	case OpLogout:
		if err := h.svc.EndSession(ctx, c); err != nil {
			writeError(w, err)
			return
		}
		auth.ClearSessionCookie(w, h.secureCookies)
		writeOK(w, "", nil)

	case OpGetCurrentUser:
		u, err := h.svc.CurrentUser(ctx, c)
		if err != nil {
			if errors.Is(err, apperror.ErrAuthentication) {
				auth.ClearSessionCookie(w, h.secureCookies)
			}
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{"user": newMemberView(u)})

	case OpUpdateProfile:
		u, err := h.svc.UpdateProfile(ctx, c, service.ProfileInput{
			Avatar:      in.Avatar,
			FacebookURL: in.FacebookURL,
			YouTubeURL:  in.YouTubeURL,
			TikTokURL:   in.TikTokURL,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, MsgProfileUpdated, envelope{"user": newMemberView(u)})

	case OpGetMembers:
		users, err := h.svc.ListMembers(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{"members": memberViews(users)})

	case OpGetLeaders:
		users, err := h.svc.ListLeaders(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{"leaders": leaderViews(users)})

	case OpGetPendingMembers:
		users, err := h.svc.ListPending(ctx, c)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{"pending": staffViews(users)})

	case OpApproveMember:
		h.simple(w, h.svc.Approve(ctx, c, in.MemberID), MsgApproved)

	case OpDeclineMember:
		h.simple(w, h.svc.Decline(ctx, c, in.MemberID), MsgDeclined)

	case OpGetAllMembers:
		all, err := h.svc.ListAll(ctx, c)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{
			"members":     staffViews(all.Members),
			"currentRole": all.CurrentRole.String(),
		})

	case OpDeleteMember:
		h.simple(w, h.svc.DeleteMember(ctx, c, in.MemberID), MsgDeleted)

	case OpDeleteMemberAdmin:
		h.simple(w, h.svc.DeleteMemberAdmin(ctx, c, in.MemberID), MsgDeleted)

	case OpGetActivityLog:
		entries, err := h.svc.ActivityLog(ctx, c, in.Limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", envelope{"entries": auditViews(entries)})

	default:
		writeFailure(w, http.StatusBadRequest, "invalid_action", MsgInvalidAction)
	}
}

func (h *MembersHandler) simple(w http.ResponseWriter, err error, message string) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, message, nil)
}

// callerFrom builds the service Caller from the identity LoadSession put in
// the context and the request's RemoteAddr.
//
// RemoteAddr reflects X-Forwarded-For only when the server runs with
// TRUST_PROXY, which installs chi's RealIP. That header is client-controlled,
// so the setting is only safe behind a proxy that overwrites it.
func callerFrom(r *http.Request) model.Caller {
	origin := r.RemoteAddr
	if host, _, err := net.SplitHostPort(origin); err == nil {
		origin = host
	}

	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return model.Anonymous(origin)
	}
	return model.Caller{Identity: id, Origin: origin}
}
