package websocket

import (
	"github.com/labstack/echo/v4"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"go.uber.org/zap"
)

// Handler serves "/ws/:session_id". Chat turns from one connection are
// relayed one after another.
func (s *Server) Handler(c echo.Context) error {
	sessionID := c.Param("session_id")

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		log.WithCtx(c.Request().Context()).Debug("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	client := NewClient(conn, sessionID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()

	for {
		select {
		case msg := <-client.Inbox():
			s.handle(client, msg)
		case <-client.Context().Done():
			return nil
		}
	}
}
