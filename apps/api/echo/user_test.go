package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

func TestUserAPI_login(t *testing.T) {
	app := setup(t)
	app.createUser(t, "stud", []string{user.RoleStudent}, []string{"IDP"})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid credentials", `{"username": "stud", "password": "LongSecret1!"}`, http.StatusOK},
		{"by email", `{"username": "stud@school.test", "password": "LongSecret1!"}`, http.StatusOK},
		{"wrong password", `{"username": "stud", "password": "nope"}`, http.StatusBadRequest},
		{"unknown user", `{"username": "ghost", "password": "LongSecret1!"}`, http.StatusBadRequest},
		{"missing fields", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", []byte(tt.body))
			app.server.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode == http.StatusOK {
				var resp TokenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func TestUserAPI_loginDeactivated(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "stud", []string{user.RoleStudent}, nil)
	inactive := false
	_, err := app.usrRepo.UpdateUser(bgCtx(), usr, &inactive)
	require.NoError(t, err)

	req, rec := newRequest(http.MethodPost, "/v1/users/login",
		[]byte(`{"username": "stud", "password": "LongSecret1!"}`))
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestUserAPI_me(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "stud", []string{user.RoleStudent}, []string{"IDP", "UROP"})

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", app.getToken(t, usr))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, []string{"IDP", "UROP"}, got.Tracks)

	req, rec = newRequest(http.MethodGet, "/v1/users/me")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserAPI_register(t *testing.T) {
	app := setup(t)
	admin := app.getToken(t, app.createUser(t, "admin", []string{user.RoleAdmin}, nil))
	coord := app.getToken(t, app.createUser(t, "coord", []string{user.RoleCoordinator}, nil))

	body := marshallObj(t, user.NewUser{
		Name:     "New Coordinator",
		Username: "newcoord",
		Email:    "newcoord@school.test",
		Password: "LongSecret1!",
		Roles:    []string{user.RoleCoordinator},
		Tracks:   []string{"CAPSTONE"},
	})

	// only admins may register users
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", coord, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPost, "/v1/users/register", admin, body)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "newcoord", got.Username)
	assert.True(t, got.IsCoordinator())

	// duplicate username
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/register", admin, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an admin cannot mint a role above their own
	body = marshallObj(t, user.NewUser{
		Username: "owner2",
		Email:    "owner2@school.test",
		Password: "LongSecret1!",
		Roles:    []string{user.RoleAdminOwner},
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/register", admin, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestUserAPI_tokenExpiryFollowsAppClock(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "stud", []string{user.RoleStudent}, nil)
	token := app.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the same token expires once the app clock passes its lifetime
	core.NowFunc = func() time.Time { return testNow.Add(app.conf.Server.JWTExpirationDelta + time.Minute) }
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "stud", []string{user.RoleStudent}, nil)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", app.getToken(t, usr))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func TestUserAPI_queryRoles(t *testing.T) {
	app := setup(t)
	admin := app.getToken(t, app.createUser(t, "admin", []string{user.RoleAdmin}, nil))
	student := app.getToken(t, app.createUser(t, "stud", []string{user.RoleStudent}, nil))

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", student)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/roles", admin)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var roles []user.Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	assert.Len(t, roles, len(user.Roles))
}
