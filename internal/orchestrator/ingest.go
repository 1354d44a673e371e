package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/protocol"
)

// IngestRequest is the inbound message descriptor for HandleNewMessage.
type IngestRequest struct {
	// ID marks a retranslation of an existing message when set.
	ID                string  `json:"id,omitempty"`
	ConversationID    string  `json:"conversationId"`
	ConversationTitle string  `json:"conversationTitle,omitempty"`
	SenderID          *string `json:"senderId,omitempty"`
	AnonymousSenderID *string `json:"anonymousSenderId,omitempty"`
	Content           string  `json:"content"`
	OriginalLanguage  string  `json:"originalLanguage"`
	MessageType       string  `json:"messageType,omitempty"`
	ReplyToID         *string `json:"replyToId,omitempty"`
	EncryptionMode    string  `json:"encryptionMode,omitempty"`
	MessageModelType  string  `json:"messageModelType,omitempty"`

	// TargetLanguage narrows the fanout to a single language when set.
	TargetLanguage string `json:"targetLanguage,omitempty"`
	// ModelType overrides both the message hint and the automatic choice.
	ModelType string `json:"modelType,omitempty"`
}

// MessageAck is the synchronous response to an ingest. Translation work
// continues after the ack is returned.
type MessageAck struct {
	MessageID         string `json:"messageId"`
	Status            string `json:"status"`
	TranslationQueued bool   `json:"translationQueued,omitempty"`
}

// HandleNewMessage persists an inbound message and schedules its translation
// fanout. The returned ack only reflects persistence: dispatch runs on a
// detached context and its failures are logged and counted, never surfaced.
func (o *Orchestrator) HandleNewMessage(ctx context.Context, req *IngestRequest) (*MessageAck, error) {
	mode := domain.EncryptionMode(req.EncryptionMode)
	if mode == "" {
		mode = domain.EncryptionNone
	}

	// The server holds no key material for e2ee content and cannot translate
	// it. New messages are still persisted so delivery is not lost.
	if mode == domain.EncryptionE2EE {
		if req.ID != "" {
			return &MessageAck{MessageID: req.ID, Status: StatusE2EESkipped}, nil
		}
		msg, err := o.persistMessage(ctx, req, mode)
		if err != nil {
			return nil, err
		}
		return &MessageAck{MessageID: msg.ID, Status: StatusE2EESkipped}, nil
	}

	var msg *domain.Message
	retranslation := req.ID != ""
	if retranslation {
		existing, err := o.store.FindMessage(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("find message %s: %w", req.ID, err)
		}
		msg = existing
	} else {
		created, err := o.persistMessage(ctx, req, mode)
		if err != nil {
			return nil, err
		}
		msg = created
	}

	status := StatusMessageSaved
	if retranslation {
		status = StatusRetranslationQueued
	}

	// Dispatch never blocks the ack; the message is already durable.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		o.dispatchTranslation(ctx, msg, req.TargetLanguage, req.ModelType, retranslation)
	}()

	return &MessageAck{MessageID: msg.ID, Status: status, TranslationQueued: true}, nil
}

func (o *Orchestrator) persistMessage(ctx context.Context, req *IngestRequest, mode domain.EncryptionMode) (*domain.Message, error) {
	if (req.SenderID == nil) == (req.AnonymousSenderID == nil) {
		return nil, domain.ErrInvalidSender
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	now := time.Now().UTC()

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = id.NewConversation()
	}
	conv := &domain.Conversation{
		ID:         conversationID,
		Identifier: id.ConversationIdentifier(req.ConversationTitle, now),
		Title:      req.ConversationTitle,
		Type:       "group",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.store.CreateConversationIfAbsent(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = "text"
	}
	msg := &domain.Message{
		ID:                id.NewMessage(),
		ConversationID:    conversationID,
		SenderID:          req.SenderID,
		AnonymousSenderID: req.AnonymousSenderID,
		Content:           req.Content,
		OriginalLanguage:  req.OriginalLanguage,
		MessageType:       messageType,
		ReplyToID:         req.ReplyToID,
		EncryptionMode:    mode,
		ModelType:         domain.ModelType(req.MessageModelType),
		CreatedAt:         now,
	}
	if err := o.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := o.store.TouchConversationLastMessageAt(ctx, conversationID, now); err != nil {
		slog.Error("orchestrator: update last message time", "error", err, "conversation_id", conversationID)
	}

	o.stats.IncMessagesSaved()
	slog.Info("orchestrator: message saved",
		"message_id", msg.ID, "conversation_id", conversationID, "language", msg.OriginalLanguage)
	return msg, nil
}

// dispatchTranslation resolves the target set and ships one request to the
// worker pool. Runs detached from the ingest request.
func (o *Orchestrator) dispatchTranslation(ctx context.Context, msg *domain.Message, callerTarget, callerModel string, retranslation bool) {
	resolved, err := o.resolveTargets(ctx, msg.ConversationID, callerTarget)
	if err != nil {
		slog.Error("orchestrator: resolve targets", "error", err, "message_id", msg.ID)
		o.stats.IncErrors()
		return
	}
	targets := filterTargets(resolved, msg.OriginalLanguage)
	if len(targets) == 0 {
		slog.Info("orchestrator: no translation targets",
			"message_id", msg.ID, "language", msg.OriginalLanguage)
		return
	}

	// Stale rows must go before the new completions arrive so the upsert
	// replaces cleanly.
	if retranslation {
		if err := o.store.DeleteTranslations(ctx, msg.ID, targets); err != nil {
			slog.Warn("orchestrator: delete stale translations", "error", err, "message_id", msg.ID)
		}
	}

	modelType := pickModelType(callerModel, msg)
	taskID, err := o.bus.RequestTranslation(ctx, &protocol.TranslationRequest{
		MessageID:       msg.ID,
		Text:            msg.Content,
		SourceLanguage:  msg.OriginalLanguage,
		TargetLanguages: targets,
		ConversationID:  msg.ConversationID,
		ModelType:       modelType,
	})
	if err != nil {
		slog.Error("orchestrator: dispatch translation", "error", err, "message_id", msg.ID)
		o.stats.IncErrors()
		return
	}

	o.stats.IncRequestsSent()
	slog.Info("orchestrator: translation dispatched",
		"task_id", taskID, "message_id", msg.ID, "targets", targets, "model_type", modelType)
}

// resolveTargets returns the translation fanout for a conversation. A caller
// supplied target short-circuits; otherwise the language union of active
// members and anonymous participants comes from the cache or the store.
func (o *Orchestrator) resolveTargets(ctx context.Context, conversationID, callerTarget string) ([]string, error) {
	if callerTarget != "" {
		return []string{callerTarget}, nil
	}
	if langs, ok := o.languages.Get(conversationID); ok {
		return langs, nil
	}
	langs, err := o.store.GetConversationLanguages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation languages: %w", err)
	}
	o.languages.Set(conversationID, langs)
	return langs, nil
}

// filterTargets drops the source language from the target set. With an empty
// or "auto" source the set is kept whole: the actual language is unknown
// until the worker detects it.
func filterTargets(targets []string, source string) []string {
	if source == "" || source == "auto" {
		return targets
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t != source {
			out = append(out, t)
		}
	}
	return out
}

// pickModelType selects the translation model: caller override, then the
// message's own hint, then length-based automatic choice.
func pickModelType(callerModel string, msg *domain.Message) string {
	if callerModel != "" {
		return callerModel
	}
	if msg.ModelType != "" {
		return string(msg.ModelType)
	}
	return autoModelType(msg.Content)
}

func autoModelType(text string) string {
	if utf8.RuneCountInString(text) < autoModelThreshold {
		return string(domain.ModelTypeMedium)
	}
	return string(domain.ModelTypePremium)
}
