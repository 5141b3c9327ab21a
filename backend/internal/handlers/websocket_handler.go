package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	ws "github.com/user/darkpool/backend/internal/websocket"
)

// EventsWSEndpoint builds the handler for the trade/reveal event feed.
func EventsWSEndpoint(hub *ws.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := &ws.Client{
			Conn: c,
			Send: make(chan []byte, 256),
		}

		hub.Register <- client

		go clientWritePump(hub, client)
		go clientReadPump(hub, client)

		log.Debug().Str("remote", c.RemoteAddr().String()).Msg("websocket connection established")
	}
}

// clientWritePump pumps messages from the hub to the websocket connection.
func clientWritePump(hub *ws.Hub, client *ws.Client) {
	defer client.Conn.Close()

	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			hub.Unregister <- client
			return
		}
	}
}

// clientReadPump drains the connection and unregisters on disconnect.
func clientReadPump(hub *ws.Hub, client *ws.Client) {
	defer func() {
		hub.Unregister <- client
		client.Conn.Close()
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("remote", client.Conn.RemoteAddr().String()).Msg("client disconnected unexpectedly")
			}
			return
		}
	}
}
