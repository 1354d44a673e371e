package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/orchestrator"
	"github.com/meshychat/meshy/internal/protocol"
	"github.com/meshychat/meshy/internal/stats"
)

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// respondDomainError maps domain sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept in the log.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConsentRequired):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidSender),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrNotAudio):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNoWorkers):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("request failed", "error", err)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves the target
// at its zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type MessagesHandler struct {
	orch *orchestrator.Orchestrator
}

func NewMessagesHandler(orch *orchestrator.Orchestrator) *MessagesHandler {
	return &MessagesHandler{orch: orch}
}

// Create ingests a chat message and acks once it is durable. Translation
// fanout continues in the background.
func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ack, err := h.orch.HandleNewMessage(r.Context(), &req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, ack, http.StatusAccepted)
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	ModelType      string `json:"modelType,omitempty"`
}

// Translate runs a synchronous translation. The response always carries a
// result; a worker timeout degrades to echoing the input text.
func (h *MessagesHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetLanguage == "" {
		respondError(w, "targetLanguage is required", http.StatusBadRequest)
		return
	}

	res, err := h.orch.TranslateTextDirectly(r.Context(), req.Text, req.SourceLanguage, req.TargetLanguage, req.ModelType)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, res, http.StatusOK)
}

func (h *MessagesHandler) GetTranslation(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.GetTranslation(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "language"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, res, http.StatusOK)
}

type AttachmentsHandler struct {
	orch          *orchestrator.Orchestrator
	translatedDir string
}

func NewAttachmentsHandler(orch *orchestrator.Orchestrator, uploadsRoot string) *AttachmentsHandler {
	return &AttachmentsHandler{
		orch:          orch,
		translatedDir: filepath.Join(uploadsRoot, "attachments", "translated"),
	}
}

type processRequest struct {
	SenderID            string                               `json:"senderId,omitempty"`
	TargetLanguages     []string                             `json:"targetLanguages,omitempty"`
	GenerateVoiceClone  bool                                 `json:"generateVoiceClone,omitempty"`
	ModelType           string                               `json:"modelType,omitempty"`
	MobileTranscription *protocol.MobileTranscriptionPayload `json:"mobileTranscription,omitempty"`
}

// Process starts the full audio pipeline for a stored attachment.
func (h *AttachmentsHandler) Process(w http.ResponseWriter, r *http.Request) {
	attachmentID := chi.URLParam(r, "id")

	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	taskID, err := h.orch.ProcessStoredAttachment(r.Context(), attachmentID, &orchestrator.AudioProcessOptions{
		SenderID:            req.SenderID,
		TargetLanguages:     req.TargetLanguages,
		GenerateVoiceClone:  req.GenerateVoiceClone,
		ModelType:           req.ModelType,
		MobileTranscription: req.MobileTranscription,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"taskId": taskID, "attachmentId": attachmentID}, http.StatusAccepted)
}

func (h *AttachmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.orch.GetAttachmentWithTranscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, view, http.StatusOK)
}

type transcribeRequest struct {
	Language string `json:"language,omitempty"`
}

func (h *AttachmentsHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	taskID, att, err := h.orch.TranscribeAttachment(r.Context(), chi.URLParam(r, "id"), req.Language)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"taskId": taskID, "attachmentId": att.ID}, http.StatusAccepted)
}

type audioTranslateRequest struct {
	TargetLanguages []string `json:"targetLanguages,omitempty"`
	ModelType       string   `json:"modelType,omitempty"`
}

func (h *AttachmentsHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req audioTranslateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	taskID, att, err := h.orch.TranslateAttachment(r.Context(), chi.URLParam(r, "id"), req.TargetLanguages, req.ModelType)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"taskId": taskID, "attachmentId": att.ID}, http.StatusAccepted)
}

// ServeTranslatedFile serves synthesized audio from the translated-audio
// directory. Only bare filenames are accepted; anything path-like is
// rejected before touching the filesystem.
func (h *AttachmentsHandler) ServeTranslatedFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		respondError(w, "invalid filename", http.StatusBadRequest)
		return
	}

	path := filepath.Join(h.translatedDir, filename)
	if _, err := os.Stat(path); err != nil {
		respondError(w, "file not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

type StatsHandler struct {
	stats *stats.Stats
}

func NewStatsHandler(st *stats.Stats) *StatsHandler {
	return &StatsHandler{stats: st}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.stats.Snapshot(), http.StatusOK)
}

type HealthHandler struct {
	dbPing func(context.Context) error
}

func NewHealthHandler(dbPing func(context.Context) error) *HealthHandler {
	return &HealthHandler{dbPing: dbPing}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Readiness reports whether the service can take traffic. The database must
// answer; a missing worker pool degrades service but does not fail probes.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.dbPing(ctx); err != nil {
			respondJSON(w, map[string]string{"status": "unhealthy", "database": err.Error()}, http.StatusServiceUnavailable)
			return
		}
	}
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
