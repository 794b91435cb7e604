package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/handler"
	"github.com/sakif/rzn-members/internal/repository/sqldb"
	"github.com/sakif/rzn-members/internal/service"
)

// =========================================================================
// HELPERS
// =========================================================================

type testAPI struct {
	router http.Handler
	svc    *service.MembershipService
	db     *sqldb.DB
}

const staffSeed = `
members:
  - {handle: chief, contact: chief@example.com, secret: chief-pw, role: leader}
  - {handle: helper, contact: helper@example.com, secret: helper-pw, role: admin}
`

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqldb.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	svc := service.NewMembershipService(service.Deps{
		Store:     db,
		Sessions:  auth.NewSessionManager(tokens, 0),
		Passwords: auth.NewPasswordService(bcrypt.MinCost),
		Logger:    logger,
	})
	_, err = svc.Seed(context.Background(), []byte(staffSeed))
	require.NoError(t, err)

	h := handler.NewMembersHandler(svc, logger, false)
	r := chi.NewRouter()
	r.Use(auth.LoadSession(svc.Sessions()))
	r.HandleFunc("/api", h.HandleLegacy)
	r.HandleFunc("/api/{operation}", h.HandleOperation)

	return &testAPI{router: r, svc: svc, db: db}
}

type response struct {
	code    int
	body    map[string]any
	cookies []*http.Cookie
}

func (a *testAPI) do(t *testing.T, req *http.Request, session *http.Cookie) response {
	t.Helper()
	if session != nil {
		req.AddCookie(session)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return response{code: rr.Code, body: body, cookies: rr.Result().Cookies()}
}

// postJSON calls /api/{op} with a JSON body.
func (a *testAPI) postJSON(t *testing.T, op string, payload any, session *http.Cookie) response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/"+op, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, session)
}

// postForm calls the legacy /api endpoint with an urlencoded form.
func (a *testAPI) postForm(t *testing.T, form url.Values, session *http.Cookie) response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req, session)
}

func (a *testAPI) get(t *testing.T, path string, session *http.Cookie) response {
	t.Helper()
	return a.do(t, httptest.NewRequest(http.MethodGet, path, nil), session)
}

func (a *testAPI) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	res := a.postJSON(t, "login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, res.code, "login body: %v", res.body)
	for _, c := range res.cookies {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("login set no %s cookie", auth.CookieName)
	return nil
}

func list(t *testing.T, res response, key string) []map[string]any {
	t.Helper()
	raw, ok := res.body[key].([]any)
	require.True(t, ok, "missing %q in %v", key, res.body)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		out = append(out, item.(map[string]any))
	}
	return out
}

// =========================================================================
// END TO END
// =========================================================================

func TestAPI_RegisterApproveLogin(t *testing.T) {
	api := newTestAPI(t)

	res := api.postForm(t, url.Values{
		"action":   {"register"},
		"username": {"alice"},
		"email":    {"a@x.com"},
		"password": {"pw1"},
	}, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, true, res.body["success"])
	assert.Equal(t, handler.MsgRegistered, res.body["message"])

	res = api.postJSON(t, "login", map[string]string{"username": "alice", "password": "pw1"}, nil)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, false, res.body["success"])
	assert.Equal(t, "pending_approval", res.body["error"])
	assert.Equal(t, "Your account is pending approval by administrators", res.body["message"])

	admin := api.login(t, "helper", "helper-pw")

	res = api.get(t, "/api/getPendingMembers", admin)
	require.Equal(t, http.StatusOK, res.code)
	pending := list(t, res, "pending")
	require.Len(t, pending, 1)
	assert.Equal(t, "RZN.alice", pending[0]["username"])
	assert.Equal(t, "a@x.com", pending[0]["email"])
	aliceID := pending[0]["id"].(string)

	res = api.postJSON(t, "approveMember", map[string]string{"member_id": aliceID}, admin)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, handler.MsgApproved, res.body["message"])

	alice := api.login(t, "alice", "pw1")
	res = api.get(t, "/api/getCurrentUser", alice)
	require.Equal(t, http.StatusOK, res.code)
	user := res.body["user"].(map[string]any)
	assert.Equal(t, "member", user["role"])
	assert.Equal(t, "RZN.alice", user["username"])
}

// =========================================================================
// DISPATCH
// =========================================================================

func TestAPI_EveryOperationIsDispatched(t *testing.T) {
	api := newTestAPI(t)
	ops := []string{
		"register", "login", "logout", "getCurrentUser", "updateProfile",
		"getMembers", "getLeaders", "getPendingMembers", "approveMember",
		"declineMember", "getAllMembers", "deleteMember", "deleteMemberAdmin",
		"getActivityLog",
	}

	for _, name := range ops {
		t.Run(name, func(t *testing.T) {
			op, ok := handler.ParseOperation(name)
			require.True(t, ok)
			assert.Equal(t, name, op.String())

			res := api.postForm(t, url.Values{"action": {name}}, nil)
			assert.NotEqual(t, "invalid_action", res.body["error"])
		})
	}
}

func TestAPI_InvalidAction(t *testing.T) {
	api := newTestAPI(t)

	for _, res := range []response{
		api.postForm(t, url.Values{"action": {"dropTables"}}, nil),
		api.postForm(t, url.Values{}, nil),
		api.get(t, "/api/GETMEMBERS", nil),
	} {
		assert.Equal(t, http.StatusBadRequest, res.code)
		assert.Equal(t, false, res.body["success"])
		assert.Equal(t, handler.MsgInvalidAction, res.body["message"])
	}
}

func TestAPI_MutationsRequirePost(t *testing.T) {
	api := newTestAPI(t)

	res := api.get(t, "/api?action=deleteMember&member_id=x", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.code)

	res = api.get(t, "/api/getMembers", nil)
	assert.Equal(t, http.StatusOK, res.code)
}

func TestAPI_MalformedJSON(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")

	res := api.do(t, req, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, handler.MsgBadRequest, res.body["message"])
}

// =========================================================================
// SESSIONS AND LISTINGS
// =========================================================================

func TestAPI_NotLoggedIn(t *testing.T) {
	api := newTestAPI(t)

	res := api.get(t, "/api/getCurrentUser", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, "Not logged in", res.body["message"])

	res = api.get(t, "/api/getAllMembers", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestAPI_LogoutEndsSession(t *testing.T) {
	api := newTestAPI(t)
	session := api.login(t, "helper", "helper-pw")

	res := api.postJSON(t, "logout", nil, session)
	require.Equal(t, http.StatusOK, res.code)
	require.NotEmpty(t, res.cookies)
	assert.Equal(t, -1, res.cookies[0].MaxAge)

	res = api.get(t, "/api/getCurrentUser", session)
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestAPI_PublicListingsHideContact(t *testing.T) {
	api := newTestAPI(t)
	api.postForm(t, url.Values{
		"action": {"register"}, "username": {"newbie"}, "email": {"n@x.com"}, "password": {"pw"},
	}, nil)

	res := api.get(t, "/api/getMembers", nil)
	require.Equal(t, http.StatusOK, res.code)
	members := list(t, res, "members")
	require.Len(t, members, 2)
	for _, m := range members {
		assert.NotContains(t, m, "email")
		assert.NotEqual(t, "pending", m["role"])
	}
	assert.Equal(t, "RZN.chief", members[0]["username"])

	res = api.get(t, "/api?action=getLeaders", nil)
	leaders := list(t, res, "leaders")
	require.Len(t, leaders, 2)
	assert.NotContains(t, leaders[0], "id")
}

func TestAPI_GetAllMembersByRole(t *testing.T) {
	api := newTestAPI(t)
	api.postForm(t, url.Values{
		"action": {"register"}, "username": {"newbie"}, "email": {"n@x.com"}, "password": {"pw"},
	}, nil)

	res := api.get(t, "/api/getAllMembers", api.login(t, "chief", "chief-pw"))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "leader", res.body["currentRole"])
	assert.Len(t, list(t, res, "members"), 3)

	res = api.get(t, "/api/getAllMembers", api.login(t, "helper", "helper-pw"))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "admin", res.body["currentRole"])
	rows := list(t, res, "members")
	require.Len(t, rows, 1)
	assert.Equal(t, "pending", rows[0]["role"])
}

func TestAPI_DeleteErrors(t *testing.T) {
	api := newTestAPI(t)
	leader := api.login(t, "chief", "chief-pw")
	admin := api.login(t, "helper", "helper-pw")

	chief, err := api.db.Users().GetByHandle(context.Background(), "RZN.chief")
	require.NoError(t, err)

	res := api.postJSON(t, "deleteMember", map[string]string{"member_id": chief.ID}, leader)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "self_action", res.body["error"])
	assert.Equal(t, "You cannot delete your own account", res.body["message"])

	res = api.postJSON(t, "deleteMemberAdmin", map[string]string{"member_id": chief.ID}, admin)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "You cannot delete admin or leader accounts", res.body["message"])

	res = api.postJSON(t, "deleteMember", map[string]string{"member_id": "missing"}, leader)
	assert.Equal(t, http.StatusNotFound, res.code)
}

func TestAPI_UpdateProfileForm(t *testing.T) {
	api := newTestAPI(t)
	session := api.login(t, "helper", "helper-pw")

	res := api.postForm(t, url.Values{
		"action":       {"updateProfile"},
		"facebook_url": {"https://facebook.com/helper"},
	}, session)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, handler.MsgProfileUpdated, res.body["message"])

	res = api.postForm(t, url.Values{
		"action":     {"updateProfile"},
		"tiktok_url": {"ftp://nope"},
	}, session)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "validation_error", res.body["error"])

	res = api.get(t, "/api/getCurrentUser", session)
	user := res.body["user"].(map[string]any)
	assert.Equal(t, "https://facebook.com/helper", user["facebook_url"])
	assert.Equal(t, "", user["tiktok_url"])
}

func TestAPI_ActivityLog(t *testing.T) {
	api := newTestAPI(t)

	res := api.get(t, "/api/getActivityLog?limit=5", api.login(t, "chief", "chief-pw"))
	require.Equal(t, http.StatusOK, res.code)
	entries := list(t, res, "entries")
	assert.NotEmpty(t, entries)
	assert.LessOrEqual(t, len(entries), 5)
	assert.Equal(t, "login", entries[0]["action"])

	res = api.get(t, "/api/getActivityLog", api.login(t, "helper", "helper-pw"))
	assert.Equal(t, http.StatusForbidden, res.code)
}
