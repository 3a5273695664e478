package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, request{method: http.MethodGet, path: "/auth/register"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodPost, path: "/auth/register",
		form: url.Values{"username": {"alice"}, "password": {"password1"}}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))

	var user models.User
	require.NoError(t, ts.db.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, models.DefaultAvatarPath, user.AvatarPath)
	assert.NotEqual(t, "password1", user.Password)

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"duplicate", url.Values{"username": {"alice"}, "password": {"password1"}}, "User alice is already registered."},
		{"missing username", url.Values{"username": {""}, "password": {"password1"}}, "Username is required."},
		{"missing password", url.Values{"username": {"bob"}, "password": {""}}, "Password is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, request{method: http.MethodPost, path: "/auth/register", form: tt.form})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.message, decode[models.ErrorResponse](t, resp).Error)
		})
	}
}

func TestRegister_WithAvatar(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "carol"))
	require.NoError(t, mw.WriteField("password", "password1"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.TinyPNG(t, 16, 16))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := ts.do(t, request{method: http.MethodPost, path: "/auth/register", body: &buf,
		headers: map[string]string{"Content-Type": mw.FormDataContentType(), "Accept": "application/json"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user := decode[models.User](t, resp)
	assert.Equal(t, "carol", user.Username)
	assert.True(t, strings.HasPrefix(user.AvatarPath, "/static/images/"), user.AvatarPath)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, withRedis(t))
	testutil.CreateUser(t, ts.db, "alice", "password1")

	resp := ts.do(t, request{method: http.MethodPost, path: "/auth/login",
		form: url.Values{"username": {"alice"}, "password": {"wrong"}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Incorrect password.", decode[models.ErrorResponse](t, resp).Error)

	resp = ts.do(t, request{method: http.MethodPost, path: "/auth/login",
		form: url.Values{"username": {"nobody"}, "password": {"password1"}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Incorrect username.", decode[models.ErrorResponse](t, resp).Error)

	resp = ts.do(t, request{method: http.MethodPost, path: "/auth/login",
		form: url.Values{"username": {"alice"}, "password": {"password1"}}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp = ts.do(t, request{method: http.MethodGet, path: "/create", cookie: "session=" + cookie.Value})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRoutes_FailClosedWithoutRedis(t *testing.T) {
	ts := newTestServer(t, withEnv("production"))
	testutil.CreateUser(t, ts.db, "alice", "password1")

	for _, path := range []string{"/auth/login", "/auth/register"} {
		resp := ts.do(t, request{method: http.MethodPost, path: path,
			form: url.Values{"username": {"alice"}, "password": {"password1"}}})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}

	resp := ts.do(t, request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_JSONReturnsToken(t *testing.T) {
	ts := newTestServer(t, withRedis(t))
	testutil.CreateUser(t, ts.db, "alice", "password1")

	resp := ts.do(t, request{method: http.MethodPost, path: "/auth/login",
		json: `{"username":"alice","password":"password1"}`})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, resp)
	require.NotEmpty(t, body.Token)
	assert.Equal(t, "alice", body.User.Username)

	resp = ts.do(t, request{method: http.MethodGet, path: "/create",
		headers: map[string]string{"Authorization": "Bearer " + body.Token}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_RevokesSession(t *testing.T) {
	ts := newTestServer(t, withRedis(t))
	user := testutil.CreateUser(t, ts.db, "alice", "password1")
	cookie := ts.cookieFor(t, user)

	resp := ts.do(t, request{method: http.MethodGet, path: "/create", cookie: cookie})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodGet, path: "/auth/logout", cookie: cookie})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp = ts.do(t, request{method: http.MethodGet, path: "/create", cookie: cookie})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))
}

func TestUpdateAvatar(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "alice", "password1")
	cookie := ts.cookieFor(t, user)

	resp := ts.do(t, request{method: http.MethodPost, path: "/auth/avatar", cookie: cookie,
		json: `{}`})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file uploaded", decode[models.ErrorResponse](t, resp).Error)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.TinyPNG(t, 16, 16))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp = ts.do(t, request{method: http.MethodPost, path: "/auth/avatar", body: &buf, cookie: cookie,
		headers: map[string]string{"Content-Type": mw.FormDataContentType(), "Accept": "application/json"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		AvatarPath string `json:"avatar_path"`
	}](t, resp)
	var stored models.User
	require.NoError(t, ts.db.First(&stored, user.ID).Error)
	assert.Equal(t, body.AvatarPath, stored.AvatarPath)
}
