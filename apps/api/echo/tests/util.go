package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/edutrack/backend/apps/api/echo"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func setup(t *testing.T) (Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv()
	return newServer(env, nil /* shutdown */), env
}

func newServer(env *testutil.Env, shutdown chan<- os.Signal) Server {
	return NewServer(
		&ServerDeps{
			Conf:           env.Conf,
			Logger:         env.Logger,
			UserSvc:        env.UserSvc,
			HomeworkSvc:    env.HomeworkSvc,
			AttendanceSvc:  env.AttendanceSvc,
			FeeSvc:         env.FeeSvc,
			DisableReqLogs: true,
		},
		shutdown,
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (tt httpTest) run(t *testing.T, srv Server) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	srv.ServeHTTP(rec, req)
	if tt.wantCode != 0 {
		assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	}
	if tt.wantData != nil {
		checkData(t, tt.wantData, rec)
	}
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, env *testutil.Env, usr user.User) string {
	t.Helper()
	claims := user.NewClaims(usr, env.Conf.JWTExpirationDelta, env.Conf.AppName)
	token, err := user.IssueToken(claims, env.Conf.SecretKey)
	require.NoError(t, err, "getToken()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshalObj()")
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkData(t *testing.T, want []byte, rec *httptest.ResponseRecorder) {
	t.Helper()
	ok, err := jsonBytesEqual(rec.Body.Bytes(), want)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(want))
	}
}
