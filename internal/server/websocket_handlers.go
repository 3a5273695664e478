package server

import (
	"log/slog"

	"quill/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// LiveEventsUpgrade rejects plain HTTP requests to /ws and remembers who is connecting.
// Anonymous readers may subscribe too.
func (s *Server) LiveEventsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if raw := c.Cookies(middleware.SessionCookie); raw != "" {
		if _, userID, err := s.sessions.Parse(c.UserContext(), raw); err == nil {
			c.Locals(middleware.LocalUserID, userID)
		}
	}
	return c.Next()
}

// LiveEventsHandler streams post events to the connection until either side hangs up.
// @Summary Live post events
// @Description WebSocket stream of post_created, post_liked and comment_added events
// @Tags events
// @Router /ws [get]
func (s *Server) LiveEventsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("Rejected live event subscriber", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
			_ = conn.Close()
			return
		}

		// The connection is recycled once this handler returns, so wait for the writer.
		done := make(chan struct{})
		go func() {
			defer close(done)
			client.WritePump()
		}()
		client.ReadPump()
		<-done
	})
}
