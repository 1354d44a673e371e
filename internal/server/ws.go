package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshychat/meshy/internal/config"
	"github.com/meshychat/meshy/internal/protocol"
)

// WSHandler upgrades client fanout connections and runs their read loop.
// Clients send Subscribe and Unsubscribe frames; everything else on the
// socket is server-pushed events.
type WSHandler struct {
	hub      *Hub
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, cfg *config.Config) *WSHandler {
	h := &WSHandler{hub: hub, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	allowedOrigins := h.cfg.Server.AllowedOrigins
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return h.cfg.Server.AllowEmptyOrigin
	}
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws: upgrade error", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.hub.register(c)
	defer h.hub.unregister(c)

	go c.writeLoop()
	h.readLoop(c)
}

func (h *WSHandler) readLoop(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws: read error", "error", err)
			}
			return
		}

		env, err := h.hub.codec.Decode(data)
		if err != nil {
			slog.Warn("ws: decode error", "error", err)
			continue
		}

		switch body := env.Body.(type) {
		case *protocol.Subscribe:
			conversationID := body.ConversationID
			if conversationID == "" {
				conversationID = env.ConversationID
			}
			if conversationID == "" {
				h.hub.sendTo(c, protocol.TypeSubscribeAck, &protocol.SubscribeAck{Subscribed: false})
				continue
			}
			h.hub.subscribe(conversationID, c)
			if body.UserID != "" {
				h.hub.identify(body.UserID, c)
			}
			h.hub.sendTo(c, protocol.TypeSubscribeAck, &protocol.SubscribeAck{ConversationID: conversationID, Subscribed: true})

		case *protocol.Unsubscribe:
			conversationID := body.ConversationID
			if conversationID == "" {
				conversationID = env.ConversationID
			}
			if conversationID == "" {
				continue
			}
			h.hub.unsubscribe(conversationID, c)
			// The ack carries the new subscription state.
			h.hub.sendTo(c, protocol.TypeSubscribeAck, &protocol.SubscribeAck{ConversationID: conversationID, Subscribed: false})

		default:
			slog.Warn("ws: unexpected client message", "type", env.Type)
		}
	}
}
