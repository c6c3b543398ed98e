package tests

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/tests"
)

func TestServer_home(t *testing.T) {
	srv, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to EduTrack API!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_auth(t *testing.T) {
	srv, env := setup(t)

	student := testutil.CreateUser(t, env.UserSvc, "Hero", "hero", "", "secret1", user.RoleStudent)
	teacher := testutil.CreateUser(t, env.UserSvc, "Teacher", "teacher", "", "secret1", user.RoleTeacher)

	tests := []httpTest{
		{name: "unknown route", path: "/lol", wantCode: http.StatusNotFound},
		{name: "trailing slash", path: "/students/", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "token required", path: "/admin/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/admin/users", token: "lol", wantCode: http.StatusUnauthorized},
		{
			name: "admin required", path: "/admin/users", token: getToken(t, env, teacher),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "teacher required", method: http.MethodPost, path: "/teacher/assign_homework", token: getToken(t, env, student),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "parent or admin required", path: "/parent/view_homework/1", token: getToken(t, env, teacher),
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, srv)
		})
	}
}

func TestServer_expiredToken(t *testing.T) {
	srv, env := setup(t)

	admin := testutil.CreateUser(t, env.UserSvc, "Admin", "admin", "", "secret1", user.RoleAdmin)
	claims := user.NewClaims(admin, -time.Hour, env.Conf.AppName)
	token, err := user.IssueToken(claims, env.Conf.SecretKey)
	assert.NoError(t, err)

	httpTest{path: "/admin/users", token: token, wantCode: http.StatusUnauthorized}.run(t, srv)
}

// failingUserSvc fails user queries as a store whose rollback failed would.
type failingUserSvc struct {
	user.Service
	err error
}

func (svc failingUserSvc) Query(context.Context, *user.QueryFilter, ...core.DBOrdering) ([]user.User, error) {
	return nil, svc.err
}

func TestServer_shutdownOnIntegrityFault(t *testing.T) {
	env := testutil.NewEnv()
	admin := testutil.CreateUser(t, env.UserSvc, "Admin", "admin", "", "secret1", user.RoleAdmin)
	token := getToken(t, env, admin)
	wantData := marshalObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)})

	shutdown := make(chan os.Signal, 1)
	usrSvc := env.UserSvc

	env.UserSvc = failingUserSvc{Service: usrSvc, err: errors.New("connection reset")}
	srv := newServer(env, shutdown)
	httpTest{path: "/admin/users", token: token, wantCode: http.StatusInternalServerError, wantData: wantData}.run(t, srv)
	assert.Empty(t, shutdown)

	env.UserSvc = failingUserSvc{Service: usrSvc, err: errors.Wrap(core.NewShutdownError("rolling back: bad connection"), "query users")}
	srv = newServer(env, shutdown)
	httpTest{path: "/admin/users", token: token, wantCode: http.StatusInternalServerError, wantData: wantData}.run(t, srv)
	select {
	case sig := <-shutdown:
		assert.Equal(t, syscall.SIGTERM, sig)
	default:
		t.Fatal("no shutdown signal")
	}
}
