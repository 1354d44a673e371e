package bus

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/meshychat/meshy/internal/config"
	"github.com/meshychat/meshy/internal/id"
)

// Headers a connecting worker sends to identify itself. The kind header is
// required; the id header is optional and mostly useful in logs.
const (
	WorkerKindHeader = "X-Meshy-Worker"
	WorkerIDHeader   = "X-Meshy-Worker-Id"
)

// Handler upgrades worker connections and attaches them to the hub.
type Handler struct {
	hub      *Hub
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg *config.Config) *Handler {
	h := &Handler{hub: hub, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	allowedOrigins := h.cfg.Server.AllowedOrigins
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Worker processes are not browsers and usually send no Origin.
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handler) verifyWorkerAuth(r *http.Request) bool {
	secret := h.cfg.Server.WorkerSecret
	if secret == "" {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+secret {
		return true
	}
	if r.URL.Query().Get("worker_secret") == secret {
		return true
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.verifyWorkerAuth(r) {
		slog.Warn("bus: worker auth failed", "remote", r.RemoteAddr)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	kind := WorkerKind(r.Header.Get(WorkerKindHeader))
	if kind == "" {
		kind = WorkerKind(r.URL.Query().Get("kind"))
	}
	if kind != WorkerTranslation && kind != WorkerVoice {
		http.Error(w, "unknown worker kind", http.StatusBadRequest)
		return
	}

	workerID := r.Header.Get(WorkerIDHeader)
	if workerID == "" {
		workerID = id.NewWorker()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("bus: upgrade error", "error", err)
		return
	}
	defer conn.Close()

	wk := &worker{id: workerID, kind: kind, conn: conn}
	h.hub.attach(wk)
	h.hub.readLoop(wk)
}
