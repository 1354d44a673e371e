// Package server exposes the HTTP edge: REST endpoints for ingest and
// attachment operations, the client fanout socket and the worker attach
// point, behind one chi router.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/metrics"
	"github.com/meshychat/meshy/internal/ports"
	"github.com/meshychat/meshy/internal/protocol"
)

const (
	// WriteTimeout bounds a single frame write on a client socket.
	WriteTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second

	// sendBuffer frames may queue per client before the client is dropped.
	sendBuffer = 64
)

// client is one attached fanout socket. A single goroutine drains send so
// frames reach the wire in emission order.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// writeLoop owns all writes to the connection. It exits when a write fails,
// including after the hub closes the connection under it; stalls between
// frames are bounded by the ping interval.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub fans persisted domain events out to connected clients: conversation
// events to conversation subscribers, voice-job events to the requesting
// user's connections. Emission never blocks; a client that cannot drain its
// queue is dropped instead.
type Hub struct {
	codec *protocol.Codec

	mu            sync.RWMutex
	clients       map[*client]struct{}
	conversations map[string]map[*client]struct{}
	users         map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		codec:         protocol.NewCodec(),
		clients:       make(map[*client]struct{}),
		conversations: make(map[string]map[*client]struct{}),
		users:         make(map[string]map[*client]struct{}),
	}
}

var _ ports.Emitter = (*Hub)(nil)

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ClientsConnected.Inc()
	slog.Info("ws: client connected", "total", total)
}

// unregister removes the client from every registry and closes its
// connection, which stops both pumps. Calling it twice is harmless.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for convID, subs := range h.conversations {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.conversations, convID)
		}
	}
	for userID, conns := range h.users {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	metrics.ClientsConnected.Dec()
	slog.Info("ws: client disconnected", "total", total)
}

func (h *Hub) subscribe(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[*client]struct{})
	}
	h.conversations[conversationID][c] = struct{}{}
	slog.Info("ws: subscribed", "conversation_id", conversationID, "total", len(h.conversations[conversationID]))
}

func (h *Hub) unsubscribe(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.conversations[conversationID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.conversations, conversationID)
		}
		slog.Info("ws: unsubscribed", "conversation_id", conversationID)
	}
}

// identify binds the connection to a user so voice-job events can reach it.
func (h *Hub) identify(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[userID] == nil {
		h.users[userID] = make(map[*client]struct{})
	}
	h.users[userID][c] = struct{}{}
}

// SubscriberCount reports connections subscribed to the conversation.
func (h *Hub) SubscriberCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}

// enqueue queues one frame per target without blocking. Targets whose queue
// is full get dropped from the hub entirely: a reconnect recovers cleaner
// than a growing backlog.
func (h *Hub) enqueue(targets []*client, data []byte) {
	var stale []*client
	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		slog.Warn("ws: client send queue full, dropping client")
		h.unregister(c)
	}
}

func (h *Hub) toConversation(conversationID string, msgType protocol.MessageType, body interface{}) {
	if conversationID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conversations[conversationID]))
	for c := range h.conversations[conversationID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	env := protocol.NewEnvelope(id.NewEnvelope(), msgType, body).WithConversation(conversationID)
	data, err := h.codec.Encode(env)
	if err != nil {
		slog.Error("ws: encode event error", "type", msgType, "error", err)
		return
	}
	h.enqueue(targets, data)
}

func (h *Hub) toUser(userID string, msgType protocol.MessageType, body interface{}) {
	if userID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		slog.Info("ws: no connection for user, event dropped", "user_id", userID, "type", msgType)
		return
	}

	env := protocol.NewEnvelope(id.NewEnvelope(), msgType, body)
	data, err := h.codec.Encode(env)
	if err != nil {
		slog.Error("ws: encode event error", "type", msgType, "error", err)
		return
	}
	h.enqueue(targets, data)
}

// sendTo queues a frame for a single client, used for acks from the read
// loop so they interleave correctly with broadcast frames.
func (h *Hub) sendTo(c *client, msgType protocol.MessageType, body interface{}) {
	env := protocol.NewEnvelope(id.NewEnvelope(), msgType, body)
	data, err := h.codec.Encode(env)
	if err != nil {
		slog.Error("ws: encode error", "type", msgType, "error", err)
		return
	}
	h.enqueue([]*client{c}, data)
}

func (h *Hub) EmitTranslationReady(ev *protocol.TranslationReadyEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeTranslationReadyEvent, ev)
}

func (h *Hub) EmitTranscriptionReady(ev *protocol.TranscriptionReadyEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeTranscriptionReadyEvent, ev)
}

func (h *Hub) EmitAudioTranslationReady(ev *protocol.AudioTranslationReadyEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeAudioTranslationReadyEvent, ev)
}

func (h *Hub) EmitAudioTranslationsProgressive(ev *protocol.AudioTranslationReadyEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeAudioTranslationsProgressiveEvent, ev)
}

func (h *Hub) EmitAudioTranslationsCompleted(ev *protocol.AudioTranslationReadyEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeAudioTranslationsCompletedEvent, ev)
}

func (h *Hub) EmitAudioTranslationError(ev *protocol.AudioTranslationErrorEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeAudioTranslationErrorEvent, ev)
}

func (h *Hub) EmitTranscriptionError(ev *protocol.TranscriptionErrorEvent) {
	h.toConversation(ev.ConversationID, protocol.TypeTranscriptionErrorEvent, ev)
}

func (h *Hub) EmitVoiceJobCompleted(ev *protocol.VoiceJobCompletedEvent) {
	h.toUser(ev.UserID, protocol.TypeVoiceJobCompletedEvent, ev)
}

func (h *Hub) EmitVoiceJobFailed(ev *protocol.VoiceJobFailedEvent) {
	h.toUser(ev.UserID, protocol.TypeVoiceJobFailedEvent, ev)
}
