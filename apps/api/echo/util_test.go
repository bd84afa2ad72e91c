package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/core/window"
	dummydb "github.com/trezcool/ratiba/storage/database/dummy"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testApp struct {
	server  Server
	conf    *core.Config
	usrSvc  *user.Service
	usrRepo user.Repository
	winSvc  *window.Service
	winRepo window.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Ratiba",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	winRepo := dummydb.NewWindowRepository(db)
	winSvc := window.NewService(winRepo, nil, window.Policy{})

	validate, translator := core.NewValidator()

	prevNow := core.NowFunc
	core.NowFunc = func() time.Time { return testNow }
	t.Cleanup(func() { core.NowFunc = prevNow })

	server := NewServer(&Options{
		Conf:           conf,
		Logger:         noopLogger{},
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		WindowSvc:      winSvc,
		WindowGate:     window.NewGate(winRepo),
		Validate:       validate,
		Translator:     translator,
	}, nil)

	return &testApp{server: server, conf: conf, usrSvc: usrSvc, usrRepo: usrRepo, winSvc: winSvc, winRepo: winRepo}
}

type noopLogger struct{}

func (noopLogger) Enable(bool)                  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func bgCtx() context.Context { return context.Background() }

func (app *testApp) createUser(t *testing.T, uname string, roles, tracks []string) user.User {
	t.Helper()
	usr, err := app.usrSvc.Create(bgCtx(), user.NewUser{
		Name:     uname,
		Username: uname,
		Email:    uname + "@school.test",
		Password: "LongSecret1!",
		Roles:    roles,
		Tracks:   tracks,
	})
	require.NoError(t, err)
	return usr
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err)
	return token
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

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
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

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
