package server

import (
	"log/slog"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// RegisterForm handles GET /auth/register
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"fields": []string{"username", "password", "avatar"}})
}

// Register handles POST /auth/register
// @Summary Register
// @Description Create an account. An avatar image is optional.
// @Tags auth
// @Accept mpfd,x-www-form-urlencoded,json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param avatar formData file false "Avatar image"
// @Success 201 {object} models.User
// @Success 302
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	avatar, err := readUpload(c, "avatar", s.config.ImageMaxUploadBytes)
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Avatar:   avatar,
	})
	if err != nil {
		return respondError(c, err)
	}
	return redirectOrJSON(c, middleware.LoginPath, fiber.StatusCreated, user)
}

// LoginForm handles GET /auth/login
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"fields": []string{"username", "password"}})
}

// Login handles POST /auth/login
// @Summary Log in
// @Description Sets the session cookie. JSON clients also receive the token.
// @Tags auth
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} object{token=string,user=models.User}
// @Success 302
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, expires, err := s.sessions.Issue(user.ID)
	if err != nil {
		return respondError(c, err)
	}
	s.sessions.SetCookie(c, token, expires)

	middleware.Logger.InfoContext(c.UserContext(), "User logged in", slog.Uint64("user_id", uint64(user.ID)))
	return redirectOrJSON(c, "/", fiber.StatusOK, fiber.Map{
		"token":      token,
		"expires_at": expires,
		"user":       user,
	})
}

// Logout handles GET and POST /auth/logout
// @Summary Log out
// @Description Revokes the session token and clears the cookie.
// @Tags auth
// @Success 302
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims := middleware.CurrentClaims(c); claims != nil {
		if err := s.sessions.Revoke(c.UserContext(), claims); err != nil {
			// The cookie is still cleared; the token expires on its own.
			middleware.Logger.WarnContext(c.UserContext(), "Failed to revoke session", slog.String("error", err.Error()))
		}
	}
	s.sessions.ClearCookie(c)
	return redirectOrJSON(c, "/", fiber.StatusOK, fiber.Map{"logged_out": true})
}

// UpdateAvatar handles POST /auth/avatar
// @Summary Replace avatar
// @Tags auth
// @Accept mpfd
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} object{avatar_path=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/avatar [post]
func (s *Server) UpdateAvatar(c *fiber.Ctx) error {
	avatar, err := readUpload(c, "avatar", s.config.ImageMaxUploadBytes)
	if err != nil {
		return respondError(c, err)
	}
	if avatar == nil {
		return respondError(c, models.NewValidationError("No file uploaded"))
	}

	path, err := s.userService.UpdateAvatar(c.UserContext(), middleware.CurrentUserID(c), *avatar)
	if err != nil {
		return respondError(c, err)
	}
	return redirectOrJSON(c, "/", fiber.StatusOK, fiber.Map{"avatar_path": path})
}
