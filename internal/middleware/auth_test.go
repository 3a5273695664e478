package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionManager(&config.Config{JWTSecret: testSecret, SessionTTL: time.Hour}, rdb), mr
}

func lookupFor(users ...*models.User) UserLookup {
	return func(_ context.Context, id uint) (*models.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, models.NewNotFoundError("User", id)
	}
}

func whoAmIApp(m *SessionManager, lookup UserLookup) *fiber.App {
	app := fiber.New()
	app.Use(m.LoadUser(lookup))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": CurrentUserID(c)})
	})
	app.Post("/guarded", LoginRequired, func(c *fiber.Ctx) error {
		return c.SendString("ok " + CurrentUser(c).Username)
	})
	return app
}

func whoAmI(t *testing.T, app *fiber.App, mutate func(*http.Request)) uint {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	mutate(req)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		UserID uint `json:"userID"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.UserID
}

func TestLoadUser(t *testing.T) {
	m, _ := newTestSessions(t)
	alice := &models.User{ID: 7, Username: "alice"}
	app := whoAmIApp(m, lookupFor(alice))

	token, _, err := m.Issue(alice.ID)
	require.NoError(t, err)
	ghost, _, err := m.Issue(99)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	foreignToken, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*http.Request)
		want   uint
	}{
		{name: "anonymous", mutate: func(*http.Request) {}, want: 0},
		{name: "cookie", mutate: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }, want: 7},
		{name: "bearer", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, want: 7},
		{name: "garbage", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, want: 0},
		{name: "wrong issuer", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreignToken) }, want: 0},
		{name: "deleted user", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, whoAmI(t, app, tt.mutate))
		})
	}
}

func TestSessionManager_ExpiredToken(t *testing.T) {
	m, _ := newTestSessions(t)
	m.ttl = -time.Minute

	token, _, err := m.Issue(7)
	require.NoError(t, err)

	_, _, err = m.Parse(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionManager_Revoke(t *testing.T) {
	m, mr := newTestSessions(t)
	ctx := context.Background()
	alice := &models.User{ID: 7, Username: "alice"}
	app := whoAmIApp(m, lookupFor(alice))

	token, _, err := m.Issue(alice.ID)
	require.NoError(t, err)
	claims, userID, err := m.Parse(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)

	require.NoError(t, m.Revoke(ctx, claims))
	assert.True(t, mr.Exists(revokedKeyPrefix+claims.ID))
	ttl := mr.TTL(revokedKeyPrefix + claims.ID)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "ttl %s", ttl)

	_, _, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	withCookie := func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }
	assert.Zero(t, whoAmI(t, app, withCookie))
}

func TestSessionManager_RevocationCheckFailsOpen(t *testing.T) {
	m, mr := newTestSessions(t)
	token, _, err := m.Issue(7)
	require.NoError(t, err)

	mr.Close()

	_, userID, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
}

func TestLoginRequired(t *testing.T) {
	m, _ := newTestSessions(t)
	alice := &models.User{ID: 7, Username: "alice"}
	app := whoAmIApp(m, lookupFor(alice))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/guarded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, LoginPath, resp.Header.Get("Location"))

	token, _, err := m.Issue(alice.ID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok alice", string(body))
}

func TestSessionCookies(t *testing.T) {
	m, _ := newTestSessions(t)
	app := fiber.New()
	app.Get("/set", func(c *fiber.Ctx) error {
		m.SetCookie(c, "tok", time.Now().Add(time.Hour))
		return nil
	})
	app.Get("/clear", func(c *fiber.Ctx) error {
		m.ClearCookie(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/set", nil))
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/clear", nil))
	require.NoError(t, err)
	cookies = resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
}
