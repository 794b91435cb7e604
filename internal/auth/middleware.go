package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/rzn-members/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "rzn_session"

// contextKey is unexported so no other package can read or shadow the
// identity stored by LoadSession.
type contextKey string

const identityKey contextKey = "identity"

// LoadSession resolves the session cookie, if any, and stores the bound
// Identity in the request context. It never rejects a request: the
// operation itself decides whether an anonymous caller is acceptable.
func LoadSession(sessions *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
				if id, err := sessions.Resolve(cookie.Value); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by LoadSession.
// ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	if !ok || id.UserID == "" {
		return nil, false
	}
	return &id, true
}

// SetSessionCookie stores token in an HttpOnly cookie. Secure should be true
// whenever the site is served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
