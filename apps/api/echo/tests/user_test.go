package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/edutrack/backend/apps/api/echo"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/tests"
)

func Test_userApi_register(t *testing.T) {
	srv, env := setup(t)
	testutil.CreateUser(t, env.UserSvc, "Bob", "bob", "bob@test.cd", "secret1", user.RoleParent)

	body := func(uname, pwd, role, email string) []byte {
		return marshalObj(t, map[string]string{"username": uname, "password": pwd, "role": role, "email": email})
	}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/auth/register", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
				"role":     "this field is required",
			}),
		},
		{
			name: "invalid role", method: http.MethodPost, path: "/auth/register", body: body("carol", "secret1", "Janitor", ""),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"role": "invalid role, expected one of Admin, Teacher, Parent, Student"}),
		},
		{
			name: "invalid username", method: http.MethodPost, path: "/auth/register", body: body("ca rol", "secret1", "Parent", ""),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "short password", method: http.MethodPost, path: "/auth/register", body: body("carol", "abc", "Parent", ""),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "admin self-signup", method: http.MethodPost, path: "/auth/register", body: body("carol", "secret1", "Admin", ""),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "admin accounts cannot be self-registered"}),
		},
		{
			name: "duplicate username", method: http.MethodPost, path: "/auth/register", body: body("BOB", "secret1", "Teacher", ""),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "duplicate email", method: http.MethodPost, path: "/auth/register", body: body("bobby", "secret1", "Teacher", "Bob@test.cd"),
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, srv)
		})
	}

	t.Run("created", func(t *testing.T) {
		rec := httpTest{
			method: http.MethodPost, path: "/auth/register", body: body("alice", "secret1", "Student", "alice@test.cd"),
			wantCode: http.StatusCreated,
		}.run(t, srv)

		var usr user.User
		decode(t, rec, &usr)
		assert.NotZero(t, usr.ID)
		assert.Equal(t, "alice", usr.Username)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.NotContains(t, rec.Body.String(), "password")

		assert.Equal(t, []string{"user.created", "user.created"}, env.Events.Names()) // bob & alice
		sent := env.Mail.SentMessages()
		require.Len(t, sent, 2) // bob & alice
		assert.Equal(t, "alice@test.cd", sent[1].To[0].Address)
		assert.Contains(t, sent[1].TextContent, "alice")
	})
}

func Test_userApi_adminSignupAllowed(t *testing.T) {
	srv, env := setup(t)
	env.Conf.Server.AllowAdminSignup = true

	httpTest{
		method: http.MethodPost, path: "/auth/register",
		body:     marshalObj(t, map[string]string{"username": "root", "password": "secret1", "role": "Admin"}),
		wantCode: http.StatusCreated,
	}.run(t, srv)
}

func Test_userApi_login(t *testing.T) {
	srv, env := setup(t)
	alice := testutil.CreateUser(t, env.UserSvc, "Alice", "alice", "alice@test.cd", "secret1", user.RoleStudent)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	invalidCreds := marshalObj(t, httpErr{Error: "invalid credentials"})

	tests := []httpTest{
		{
			name: "missing password", method: http.MethodPost, path: "/auth/login", body: []byte(`{"username": "alice"}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"password": "this field is required"}),
		},
		{name: "wrong password", method: http.MethodPost, path: "/auth/login", body: body("alice", "wrongpass"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
		{name: "unknown user", method: http.MethodPost, path: "/auth/login", body: body("nobody", "secret1"), wantCode: http.StatusUnauthorized, wantData: invalidCreds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, srv)
		})
	}

	for _, uname := range []string{"alice", " Alice ", "alice@test.cd"} {
		t.Run("success with "+uname, func(t *testing.T) {
			rec := httpTest{method: http.MethodPost, path: "/auth/login", body: body(uname, "secret1"), wantCode: http.StatusOK}.run(t, srv)

			var resp LoginResponse
			decode(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			// the token grants access
			rec = httpTest{path: "/auth/me", token: resp.Token, wantCode: http.StatusOK}.run(t, srv)
			var me user.User
			decode(t, rec, &me)
			assert.Equal(t, alice.ID, me.ID)
			assert.False(t, me.LastLogin.IsZero())
		})
	}
}

func Test_userApi_tokenRefreshAndLogout(t *testing.T) {
	srv, env := setup(t)
	teacher := testutil.CreateUser(t, env.UserSvc, "Teacher", "teacher", "", "secret1", user.RoleTeacher)
	token := getToken(t, env, teacher)

	rec := httpTest{method: http.MethodPost, path: "/auth/token-refresh", token: token, wantCode: http.StatusOK}.run(t, srv)
	var resp LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	httpTest{
		method: http.MethodPost, path: "/auth/logout", token: resp.Token,
		wantCode: http.StatusOK, wantData: marshalObj(t, MessageResponse{Message: "Logged out successfully"}),
	}.run(t, srv)

	// refresh window elapsed
	env.Conf.JWTRefreshExpirationDelta = 0
	httpTest{
		method: http.MethodPost, path: "/auth/token-refresh", token: token,
		wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
	}.run(t, srv)
}

func Test_userApi_passwordReset(t *testing.T) {
	srv, env := setup(t)
	testutil.CreateUser(t, env.UserSvc, "Bob", "bob", "bob@test.cd", "secret1", user.RoleParent)
	env.Mail.Reset()

	// unknown emails are not disclosed
	httpTest{
		method: http.MethodPost, path: "/auth/password-reset", body: []byte(`{"email": "nobody@test.cd"}`),
		wantCode: http.StatusOK,
	}.run(t, srv)
	assert.Empty(t, env.Mail.SentMessages())

	httpTest{
		method: http.MethodPost, path: "/auth/password-reset", body: []byte(`{"email": "BOB@test.cd"}`),
		wantCode: http.StatusOK,
	}.run(t, srv)
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	data, ok := sent[0].TemplateData.(map[string]string)
	require.True(t, ok)

	confirm := func(token, pwd, pwdConfirm string) []byte {
		return marshalObj(t, user.ResetUserPassword{Token: token, UID: data["UID"], Password: pwd, PasswordConfirm: pwdConfirm})
	}
	tests := []httpTest{
		{
			name: "passwords mismatch", method: http.MethodPost, path: "/auth/password-reset-confirm", body: confirm(data["Token"], "newpass1", "newpass2"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"password_confirm": "passwords do not match"}),
		},
		{
			name: "bad token", method: http.MethodPost, path: "/auth/password-reset-confirm", body: confirm("1-abc", "newpass1", "newpass1"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "reset", method: http.MethodPost, path: "/auth/password-reset-confirm", body: confirm(data["Token"], "newpass1", "newpass1"),
			wantCode: http.StatusOK,
		},
		{
			name: "token is single use", method: http.MethodPost, path: "/auth/password-reset-confirm", body: confirm(data["Token"], "newpass2", "newpass2"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "old password rejected", method: http.MethodPost, path: "/auth/login", body: marshalObj(t, LoginRequest{Username: "bob", Password: "secret1"}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "new password accepted", method: http.MethodPost, path: "/auth/login", body: marshalObj(t, LoginRequest{Username: "bob", Password: "newpass1"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, srv)
		})
	}
}

func Test_userApi_createUser(t *testing.T) {
	srv, env := setup(t)
	admin := testutil.CreateUser(t, env.UserSvc, "Admin", "admin", "", "secret1", user.RoleAdmin)
	adminToken := getToken(t, env, admin)

	body := func(uname, email, role string) []byte {
		return marshalObj(t, user.NewUser{Username: uname, Email: email, Password: "secret1", Role: role})
	}

	tests := []httpTest{
		{
			name: "missing email ok, missing role not", method: http.MethodPost, path: "/admin/create_user", token: adminToken,
			body: body("carol", "", ""), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"role": "this field is required"}),
		},
		{
			name: "admin can create admins", method: http.MethodPost, path: "/admin/create_user", token: adminToken,
			body: body("root", "root@test.cd", "Admin"), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/admin/create_user", token: adminToken,
			body: body("root", "", "Teacher"), wantCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, srv)
		})
	}
	assert.Equal(t, 2, env.DB.Count("users"))
	assert.Equal(t, 2, env.DB.Count("profiles"))
}

func Test_userApi_query(t *testing.T) {
	srv, env := setup(t)
	admin := testutil.CreateUser(t, env.UserSvc, "Admin", "admin", "admin@test.cd", "secret1", user.RoleAdmin)
	teacher := testutil.CreateUser(t, env.UserSvc, "Teacher", "teacher", "teach@test.cd", "secret1", user.RoleTeacher)
	bob := testutil.CreateUser(t, env.UserSvc, "Bob User", "bob", "bob@test.cd", "secret1", user.RoleParent)
	adminToken := getToken(t, env, admin)

	path := func(search, ordering string, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", string(r))
		}
		return "/admin/users?" + v.Encode()
	}
	ids := func(users ...user.User) []int64 {
		res := make([]int64, len(users))
		for i, u := range users {
			res[i] = u.ID
		}
		return res
	}

	tests := []struct {
		name    string
		path    string
		wantIDs []int64
	}{
		{name: "all", path: path("", "id"), wantIDs: ids(admin, teacher, bob)},
		{name: "search", path: path("USER", "id"), wantIDs: ids(bob)},
		{name: "search (unknown)", path: path("lol", ""), wantIDs: ids()},
		{name: "role", path: path("", "", user.RoleTeacher), wantIDs: ids(teacher)},
		{name: "roles", path: path("", "-id", user.RoleTeacher, user.RoleParent), wantIDs: ids(bob, teacher)},
		{name: "ordering", path: path("", "-id"), wantIDs: ids(bob, teacher, admin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httpTest{path: tt.path, token: adminToken, wantCode: http.StatusOK}.run(t, srv)
			var users []user.User
			decode(t, rec, &users)
			assert.Equal(t, tt.wantIDs, ids(users...))
		})
	}

	t.Run("roles", func(t *testing.T) {
		httpTest{path: "/admin/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)}.run(t, srv)
	})
}
