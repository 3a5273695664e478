// Package middleware provides authentication, logging, rate limiting and tracing middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookie is the name of the cookie holding the session token.
	SessionCookie = "session"
	// LoginPath is where unauthenticated users are sent.
	LoginPath = "/auth/login"

	tokenIssuer      = "quill"
	tokenAudience    = "quill-web"
	revokedKeyPrefix = "blacklist:"
	defaultTTL       = 24 * time.Hour
)

// Fiber locals set by LoadUser.
const (
	LocalUserID = "userID"
	LocalUser   = "user"
	LocalClaims = "claims"
)

// ErrTokenRevoked is returned for tokens that were logged out.
var ErrTokenRevoked = errors.New("token revoked")

// UserLookup loads the user a session belongs to.
type UserLookup func(ctx context.Context, id uint) (*models.User, error)

// SessionManager issues and validates signed session tokens. Logged-out tokens are
// remembered in Redis until they expire.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	secure bool
}

func NewSessionManager(cfg *config.Config, rdb *redis.Client) *SessionManager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		rdb:    rdb,
		secure: cfg.IsProduction(),
	}
}

// Issue signs a token for userID.
func (m *SessionManager) Issue(userID uint) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates a token and returns its claims and user id.
func (m *SessionManager) Parse(ctx context.Context, raw string) (*jwt.RegisteredClaims, uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, 0, err
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}

	revoked, err := m.isRevoked(ctx, claims.ID)
	if err != nil {
		Logger.WarnContext(ctx, "Session revocation check failed", slog.String("error", err.Error()))
	}
	if revoked {
		return nil, 0, ErrTokenRevoked
	}
	return claims, uint(userID), nil
}

// Revoke blocks the token until it would have expired anyway.
func (m *SessionManager) Revoke(ctx context.Context, claims *jwt.RegisteredClaims) error {
	if m.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	ctx, span := observability.StartRedisSpan(ctx, "set")
	defer span.End()
	if err := m.rdb.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (m *SessionManager) isRevoked(ctx context.Context, jti string) (bool, error) {
	if m.rdb == nil || jti == "" {
		return false, nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "exists")
	defer span.End()
	n, err := m.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetCookie stores token in an HTTP-only session cookie.
func (m *SessionManager) SetCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// LoadUser resolves the current user from the session cookie or a Bearer token.
// Requests without a valid session continue anonymously.
func (m *SessionManager) LoadUser(lookup UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		claims, userID, err := m.Parse(ctx, raw)
		if err != nil {
			Logger.DebugContext(ctx, "Ignoring invalid session", slog.String("error", err.Error()))
			return c.Next()
		}

		user, err := lookup(ctx, userID)
		if err != nil {
			if !models.HasCode(err, models.CodeNotFound) {
				Logger.ErrorContext(ctx, "Failed to load session user", slog.String("error", err.Error()))
			}
			return c.Next()
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUser, user)
		c.Locals(LocalClaims, claims)
		c.SetUserContext(context.WithValue(ctx, UserIDKey, user.ID))
		return c.Next()
	}
}

// LoginRequired redirects anonymous requests to the login page.
func LoginRequired(c *fiber.Ctx) error {
	if CurrentUserID(c) == 0 {
		return c.Redirect(LoginPath, fiber.StatusFound)
	}
	return c.Next()
}

// CurrentUserID returns the authenticated user's id, or 0 for anonymous requests.
func CurrentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(LocalUser).(*models.User)
	return user
}

// CurrentClaims returns the claims of the request's session token, or nil.
func CurrentClaims(c *fiber.Ctx) *jwt.RegisteredClaims {
	claims, _ := c.Locals(LocalClaims).(*jwt.RegisteredClaims)
	return claims
}

func tokenFromRequest(c *fiber.Ctx) string {
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
