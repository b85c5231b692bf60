package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/campusdeals/apps/api/echo"
	"github.com/trezcool/campusdeals/core/user"
	emailsvc "github.com/trezcool/campusdeals/services/email"
	"github.com/trezcool/campusdeals/tests"
)

const testPassword = "Sup3r!Secret#Pwd"

func Test_userApi_login(t *testing.T) {
	a, srv := setup(t)

	testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", testPassword, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, a.UserRepo, "Banned", "banned@test.tn", testPassword, []string{user.RoleStudent}, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	body := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/auth/login", body: body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login", body: body("nobody@test.tn", testPassword),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: body("amina@test.tn", "nope"),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "inactive account", method: http.MethodPost, path: "/v1/auth/login", body: body("banned@test.tn", testPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	rec := do(srv, http.MethodPost, "/v1/auth/login", "", body(" AMINA@test.tn ", testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.LoginResponse
	decode(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "amina@test.tn", res.User.Email)
	assert.False(t, res.User.LastLogin.IsZero())

	// the issued token authenticates the user
	rec = do(srv, http.MethodGet, "/v1/users/me", res.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me user.User
	decode(t, rec, &me)
	assert.Equal(t, res.User.ID, me.ID)
}

func Test_userApi_loginCode(t *testing.T) {
	a, srv := setup(t)
	usr := testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", "", []string{user.RoleStudent}, true)

	request := func(email string) []byte { return marchallObj(t, user.LoginCodeRequest{Email: email}) }
	verify := func(email, code string) []byte { return marchallObj(t, user.LoginCodeVerify{Email: email, Code: code}) }

	// unknown emails get the same answer
	rec := do(srv, http.MethodPost, "/v1/auth/login-code", "", request("nobody@test.tn"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, emailsvc.SentMessages())

	rec = do(srv, http.MethodPost, "/v1/auth/login-code", "", request("amina@test.tn"))
	require.Equal(t, http.StatusOK, rec.Code)
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, user.TestLoginCode)

	invalidCode := marchallObj(t, map[string]string{"code": user.ErrInvalidCode.Error()})
	runHTTPTests(t, srv, []httpTest{
		{
			name: "malformed code", method: http.MethodPost, path: "/v1/auth/login-code/verify", body: verify("amina@test.tn", "12ab"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "wrong code", method: http.MethodPost, path: "/v1/auth/login-code/verify", body: verify("amina@test.tn", "000000"),
			wantCode: http.StatusBadRequest, wantData: invalidCode,
		},
		{
			name: "no pending code", method: http.MethodPost, path: "/v1/auth/login-code/verify", body: verify("other@test.tn", user.TestLoginCode),
			wantCode: http.StatusBadRequest, wantData: invalidCode,
		},
	})

	rec = do(srv, http.MethodPost, "/v1/auth/login-code/verify", "", verify("amina@test.tn", user.TestLoginCode))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.LoginResponse
	decode(t, rec, &res)
	assert.Equal(t, usr.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	// codes are single use
	rec = do(srv, http.MethodPost, "/v1/auth/login-code/verify", "", verify("amina@test.tn", user.TestLoginCode))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_loginCodeMaxAttempts(t *testing.T) {
	a, srv := setup(t)
	testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", "", []string{user.RoleStudent}, true)

	rec := do(srv, http.MethodPost, "/v1/auth/login-code", "", marchallObj(t, user.LoginCodeRequest{Email: "amina@test.tn"}))
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < a.Conf.Rules.OTPMaxAttempts; i++ {
		rec = do(srv, http.MethodPost, "/v1/auth/login-code/verify", "",
			marchallObj(t, user.LoginCodeVerify{Email: "amina@test.tn", Code: "000000"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	// the right code is refused once the attempts are exhausted
	rec = do(srv, http.MethodPost, "/v1/auth/login-code/verify", "",
		marchallObj(t, user.LoginCodeVerify{Email: "amina@test.tn", Code: user.TestLoginCode}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_query(t *testing.T) {
	a, srv := setup(t)

	now := time.Now()
	stud := testutil.CreateUser(t, a.UserRepo, "Hero", "hero@test.tn", "", []string{user.RoleStudent}, true, now.Add(-3*time.Hour))
	owner := testutil.CreateUser(t, a.UserRepo, "Shop Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true, now.Add(-2*time.Hour))
	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true, now.Add(-time.Hour))

	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }
	ids := func(t *testing.T, p string) []string {
		rec := do(srv, http.MethodGet, p, getToken(t, admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		decode(t, rec, &users)
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	runHTTPTests(t, srv, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, stud),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "bad created_from", path: path(url.Values{"created_from": {"yesterday"}}), token: getToken(t, admin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"created_from": "must be an RFC 3339 date-time"}),
		},
	})

	assert.Equal(t, []string{admin.ID, owner.ID, stud.ID}, ids(t, "/v1/users"))
	assert.Equal(t, []string{stud.ID, owner.ID, admin.ID}, ids(t, path(url.Values{"ordering": {"created_at"}})))
	assert.Equal(t, []string{owner.ID}, ids(t, path(url.Values{"role": {user.RoleBusiness}})))
	assert.Equal(t, []string{owner.ID}, ids(t, path(url.Values{"search": {"SHOP"}})))
	assert.Equal(t, []string{admin.ID, owner.ID}, ids(t, path(url.Values{
		"created_from": {now.Add(-150 * time.Minute).Format(time.RFC3339)},
	})))
}

func Test_userApi_detail(t *testing.T) {
	a, srv := setup(t)

	amina := testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", "", []string{user.RoleStudent}, true)
	karim := testutil.CreateUser(t, a.UserRepo, "Karim", "karim@test.tn", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)

	runHTTPTests(t, srv, []httpTest{
		{name: "self", path: "/v1/users/" + amina.ID, token: getToken(t, amina), wantCode: http.StatusOK},
		{
			name: "someone else", path: "/v1/users/" + karim.ID, token: getToken(t, amina),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin", path: "/v1/users/" + karim.ID, token: getToken(t, admin), wantCode: http.StatusOK},
		{
			name: "non admin cannot change roles", method: http.MethodPut, path: "/v1/users/" + amina.ID, token: getToken(t, amina),
			body: []byte(`{"name": "Amina", "roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: getToken(t, admin),
			wantCode: http.StatusForbidden,
		},
		{name: "admin deletes", method: http.MethodDelete, path: "/v1/users/" + karim.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/users/" + karim.ID, token: getToken(t, admin), wantCode: http.StatusNotFound},
	})
}

func Test_userApi_setPushToken(t *testing.T) {
	a, srv := setup(t)
	amina := testutil.CreateUser(t, a.UserRepo, "Amina", "amina@test.tn", "", []string{user.RoleStudent}, true)

	rec := do(srv, http.MethodPut, "/v1/users/me/push-token", getToken(t, amina), []byte(`{"token": ""}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPut, "/v1/users/me/push-token", getToken(t, amina), []byte(`{"token": "ExponentPushToken[abc]"}`))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	usr, err := a.UserSvc.GetByID(ctxBg(), amina.ID)
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[abc]", usr.PushToken)
}
