package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is one frame of the live stream.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// stream pushes the current view and then every published view to the client.
func (s *Server) stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	defer conn.Close()

	views, unsubscribe := s.driver.Subscribe()
	defer unsubscribe()

	// the read loop only handles control frames and detects close
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	if err := send(wsMessage{Type: "view", Data: s.driver.View()}); err != nil {
		return nil
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.logger.Debug().Str("remote", c.RealIP()).Msg("WebSocket client connected")
	for {
		select {
		case <-closed:
			s.logger.Debug().Str("remote", c.RealIP()).Msg("WebSocket client disconnected")
			return nil
		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if err := send(wsMessage{Type: "view", Data: v}); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
