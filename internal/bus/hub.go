// Package bus routes translation and audio jobs to the worker pool over
// WebSocket and fans worker completions back to a single listener.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/metrics"
	"github.com/meshychat/meshy/internal/ports"
	"github.com/meshychat/meshy/internal/protocol"
)

const WriteTimeout = 10 * time.Second

// WorkerKind selects which pool a connection joins.
type WorkerKind string

const (
	WorkerTranslation WorkerKind = "translation"
	WorkerVoice       WorkerKind = "voice"
)

// worker is one attached connection. Writes are serialized per connection
// because gorilla allows at most one concurrent writer.
type worker struct {
	id   string
	kind WorkerKind
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *worker) send(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Hub implements ports.Bus over the pool of connected workers. Jobs go out
// round-robin within a kind; completions from any worker are decoded and
// handed to the registered listener.
type Hub struct {
	codec *protocol.Codec

	workersMu sync.RWMutex
	workers   map[WorkerKind][]*worker
	next      map[WorkerKind]int

	listenerMu sync.RWMutex
	listener   ports.BusListener
}

func NewHub() *Hub {
	return &Hub{
		codec:   protocol.NewCodec(),
		workers: make(map[WorkerKind][]*worker),
		next:    make(map[WorkerKind]int),
	}
}

// SetListener registers the completion listener, replacing any previous one.
func (h *Hub) SetListener(l ports.BusListener) {
	h.listenerMu.Lock()
	h.listener = l
	h.listenerMu.Unlock()
}

func (h *Hub) attach(w *worker) {
	h.workersMu.Lock()
	h.workers[w.kind] = append(h.workers[w.kind], w)
	total := len(h.workers[w.kind])
	h.workersMu.Unlock()

	metrics.WorkersConnected.WithLabelValues(string(w.kind)).Inc()
	slog.Info("bus: worker connected", "worker_id", w.id, "kind", w.kind, "total", total)
}

func (h *Hub) detach(w *worker) {
	h.workersMu.Lock()
	pool := h.workers[w.kind]
	for i, cand := range pool {
		if cand == w {
			h.workers[w.kind] = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	total := len(h.workers[w.kind])
	h.workersMu.Unlock()

	metrics.WorkersConnected.WithLabelValues(string(w.kind)).Dec()
	slog.Info("bus: worker disconnected", "worker_id", w.id, "kind", w.kind, "total", total)
}

// WorkerCount reports the number of connected workers of the given kind.
func (h *Hub) WorkerCount(kind WorkerKind) int {
	h.workersMu.RLock()
	defer h.workersMu.RUnlock()
	return len(h.workers[kind])
}

func (h *Hub) pick(kind WorkerKind) (*worker, error) {
	h.workersMu.Lock()
	defer h.workersMu.Unlock()

	pool := h.workers[kind]
	if len(pool) == 0 {
		return nil, fmt.Errorf("no %s workers: %w", kind, domain.ErrNoWorkers)
	}
	w := pool[h.next[kind]%len(pool)]
	h.next[kind]++
	return w, nil
}

func (h *Hub) dispatch(kind WorkerKind, msgType protocol.MessageType, body interface{}) (string, error) {
	w, err := h.pick(kind)
	if err != nil {
		return "", err
	}

	taskID := id.NewTask()
	env := protocol.NewEnvelope(id.NewEnvelope(), msgType, body).WithTask(taskID)
	data, err := h.codec.Encode(env)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", msgType, err)
	}

	if err := w.send(data); err != nil {
		// The read loop detaches the dead connection shortly after.
		return "", fmt.Errorf("send %s to worker %s: %w", msgType, w.id, err)
	}
	return taskID, nil
}

func (h *Hub) RequestTranslation(ctx context.Context, req *protocol.TranslationRequest) (string, error) {
	taskID, err := h.dispatch(WorkerTranslation, protocol.TypeTranslationRequest, req)
	if err != nil {
		return "", err
	}
	slog.Info("bus: translation dispatched",
		"task_id", taskID, "message_id", req.MessageID, "targets", len(req.TargetLanguages))
	return taskID, nil
}

func (h *Hub) RequestAudioJob(ctx context.Context, req *protocol.AudioProcessRequest) (string, error) {
	taskID, err := h.dispatch(WorkerVoice, protocol.TypeAudioProcessRequest, req)
	if err != nil {
		return "", err
	}
	slog.Info("bus: audio job dispatched",
		"task_id", taskID, "message_id", req.MessageID, "attachment_id", req.AttachmentID,
		"audio_bytes", len(req.Audio), "targets", len(req.TargetLanguages))
	return taskID, nil
}

func (h *Hub) RequestTranscription(ctx context.Context, req *protocol.TranscriptionRequest) (string, error) {
	taskID, err := h.dispatch(WorkerVoice, protocol.TypeTranscriptionRequest, req)
	if err != nil {
		return "", err
	}
	slog.Info("bus: transcription dispatched",
		"task_id", taskID, "message_id", req.MessageID, "attachment_id", req.AttachmentID)
	return taskID, nil
}

func (h *Hub) readLoop(w *worker) {
	defer h.detach(w)

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("bus: read error", "worker_id", w.id, "error", err)
			}
			return
		}

		env, err := h.codec.Decode(data)
		if err != nil {
			slog.Error("bus: decode error", "worker_id", w.id, "error", err)
			continue
		}

		h.deliver(env)
	}
}

// deliver hands one worker completion to the listener. Processing runs on a
// context detached from the connection: a disconnect mid-handling must not
// cancel persistence.
func (h *Hub) deliver(env *protocol.Envelope) {
	h.listenerMu.RLock()
	l := h.listener
	h.listenerMu.RUnlock()

	if l == nil {
		slog.Warn("bus: completion dropped, no listener", "type", env.Type, "task_id", env.TaskID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch body := env.Body.(type) {
	case *protocol.TranslationCompleted:
		l.OnTranslationCompleted(ctx, env.TaskID, body, env.Meta)
	case *protocol.TranslationError:
		l.OnTranslationError(ctx, env.TaskID, body)
	case *protocol.TranscriptionReady:
		l.OnTranscriptionReady(ctx, env.TaskID, body)
	case *protocol.AudioTranslationEvent:
		switch env.Type {
		case protocol.TypeAudioTranslationReady:
			l.OnAudioTranslationReady(ctx, env.TaskID, body)
		case protocol.TypeAudioTranslationsProgressive:
			l.OnAudioTranslationsProgressive(ctx, env.TaskID, body)
		case protocol.TypeAudioTranslationsCompleted:
			l.OnAudioTranslationsCompleted(ctx, env.TaskID, body)
		}
	case *protocol.AudioProcessCompleted:
		l.OnAudioProcessCompleted(ctx, env.TaskID, body)
	case *protocol.AudioProcessError:
		l.OnAudioProcessError(ctx, env.TaskID, body)
	case *protocol.TranscriptionCompleted:
		l.OnTranscriptionCompleted(ctx, env.TaskID, body)
	case *protocol.TranscriptionOnlyError:
		l.OnTranscriptionError(ctx, env.TaskID, body)
	case *protocol.VoiceTranslationCompleted:
		l.OnVoiceTranslationCompleted(ctx, body)
	case *protocol.VoiceTranslationFailed:
		l.OnVoiceTranslationFailed(ctx, body)
	default:
		slog.Warn("bus: unexpected message from worker", "type", env.Type, "task_id", env.TaskID)
	}
}
