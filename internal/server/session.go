package server

import (
	"log/slog"

	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// DBSession checks out one database connection for the whole request and puts it in
// the request context. The connection goes back to the pool when the handler chain
// returns, including when it panics.
func (s *Server) DBSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		sess, err := database.Acquire(ctx, s.db)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "Failed to acquire database connection", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusServiceUnavailable, models.NewInternalError(err))
		}
		defer func() {
			if err := sess.Release(); err != nil {
				middleware.Logger.WarnContext(ctx, "Failed to release database connection", slog.String("error", err.Error()))
			}
		}()

		c.SetUserContext(database.WithSession(ctx, sess))
		return c.Next()
	}
}
