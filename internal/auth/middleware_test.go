package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/rzn-members/internal/model"
)

// captureIdentity is a terminal handler that records what LoadSession stored.
func captureIdentity(got **model.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestLoadSession_ValidCookie(t *testing.T) {
	m := newTestSessionManager(t)
	token, id, err := m.Create("user-1", "RZN.alice", model.RoleMember)
	require.NoError(t, err)

	var got *model.Identity
	h := LoadSession(m)(captureIdentity(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/getCurrentUser", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}

func TestLoadSession_Anonymous(t *testing.T) {
	m := newTestSessionManager(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage cookie", &http.Cookie{Name: CookieName, Value: "garbage"}},
		{"empty cookie", &http.Cookie{Name: CookieName, Value: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.Identity
			h := LoadSession(m)(captureIdentity(&got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code, "anonymous requests must pass through")
			assert.Nil(t, got)
		})
	}
}

func TestLoadSession_EndedSession(t *testing.T) {
	m := newTestSessionManager(t)
	token, id, _ := m.Create("user-1", "RZN.alice", model.RoleMember)
	m.End(id.SessionID)

	var got *model.Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	LoadSession(m)(captureIdentity(&got)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, got)
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Hour, true)
	ClearSessionCookie(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	assert.Equal(t, "", cookies[1].Value)
	assert.Less(t, cookies[1].MaxAge, 0)
}
