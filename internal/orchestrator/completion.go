package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meshychat/meshy/internal/cache"
	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/metrics"
	"github.com/meshychat/meshy/internal/protocol"
)

// poolFullError is the exact error string translation workers send when they
// shed load. Matched by equality, not substring.
const poolFullError = "translation pool full"

// OnTranslationCompleted persists one per-language completion and pushes it to
// subscribed clients. Synchronous waiters consume the result instead: their
// message ids are synthetic and have no row to attach a translation to.
func (o *Orchestrator) OnTranslationCompleted(ctx context.Context, taskID string, ev *protocol.TranslationCompleted, meta map[string]interface{}) {
	target := ev.TargetLanguage
	if target == "" {
		target = ev.Result.TargetLanguage
	}

	if o.notifySyncWaiter(ev.Result.MessageID, target, ev) {
		return
	}

	if o.processed.Seen(cache.TaskKey(taskID, target)) {
		slog.Info("orchestrator: duplicate completion dropped", "task_id", taskID, "target", target)
		return
	}

	msg, err := o.store.FindMessage(ctx, ev.Result.MessageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Sync translations whose waiter already timed out land here.
			slog.Info("orchestrator: completion for unknown message dropped",
				"task_id", taskID, "message_id", ev.Result.MessageID)
			return
		}
		slog.Error("orchestrator: load message for completion", "error", err, "message_id", ev.Result.MessageID)
		o.stats.IncErrors()
		return
	}

	tr := &domain.Translation{
		ID:                id.NewTranslation(),
		MessageID:         msg.ID,
		TargetLanguage:    target,
		TranslatedContent: ev.Result.TranslatedText,
		TranslationModel:  ev.Result.TranslatorModel,
		ConfidenceScore:   ev.Result.ConfidenceScore,
		CreatedAt:         time.Now().UTC(),
	}

	if msg.EncryptionMode.ServerReadable() {
		sealed, err := o.enc.EncryptTranslation(ctx, ev.Result.TranslatedText, msg.ConversationID)
		if err != nil {
			// Readable beats sealed: a conversation without key material
			// still gets its translation, stored plaintext.
			slog.Warn("orchestrator: encrypt translation", "error", err, "conversation_id", msg.ConversationID)
		} else {
			tr.TranslatedContent = sealed.Content
			tr.IsEncrypted = true
			tr.KeyID = &sealed.KeyID
			tr.IV = &sealed.IV
			tr.AuthTag = &sealed.AuthTag
		}
	}

	if err := o.store.UpsertTranslation(ctx, tr); err != nil {
		slog.Error("orchestrator: save translation", "error", err, "message_id", msg.ID, "target", target)
		o.stats.IncErrors()
		return
	}

	// The cache always holds plaintext; encryption applies at rest only.
	o.translations.Set(
		cache.TranslationKey(msg.ID, ev.Result.SourceLanguage, target),
		toDomainResult(&ev.Result),
	)

	if msg.SenderID != nil {
		if err := o.store.IncrementUserTranslationsUsed(ctx, *msg.SenderID); err != nil {
			slog.Warn("orchestrator: bump usage counter", "error", err, "user_id", *msg.SenderID)
		}
	}

	o.stats.ObserveTranslation(time.Duration(ev.Result.ProcessingTimeMs) * time.Millisecond)

	o.emitter.EmitTranslationReady(&protocol.TranslationReadyEvent{
		TaskID:         taskID,
		ConversationID: msg.ConversationID,
		Result:         ev.Result,
		TargetLanguage: target,
		TranslationID:  tr.ID,
		Metadata:       mergeMeta(ev.Metadata, meta),
	})

	slog.Info("orchestrator: translation saved",
		"task_id", taskID, "message_id", msg.ID, "target", target, "translation_id", tr.ID)
}

// OnTranslationError fails any synchronous waiters for the message and counts
// the error. Async callers learn about failures from the missing translation;
// no client event exists for text failures.
func (o *Orchestrator) OnTranslationError(ctx context.Context, taskID string, ev *protocol.TranslationError) {
	slog.Error("orchestrator: translation failed",
		"task_id", taskID, "message_id", ev.MessageID, "worker_error", ev.Error)

	o.failSyncWaiters(ev.MessageID, ev.Error)
	o.stats.IncErrors()
	if ev.Error == poolFullError {
		o.stats.IncPoolFullRejections()
	}
}

// GetTranslation returns the plaintext translation of a message, decrypting
// rows sealed at rest. A failed decrypt is an error result; ciphertext is
// never handed out as content.
func (o *Orchestrator) GetTranslation(ctx context.Context, messageID, targetLanguage string) (*domain.TranslationResult, error) {
	msg, err := o.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("find message %s: %w", messageID, err)
	}

	key := cache.TranslationKey(messageID, msg.OriginalLanguage, targetLanguage)
	if res, ok := o.translations.Get(key); ok {
		metrics.TranslationCacheLookups.WithLabelValues("hit").Inc()
		return &res, nil
	}
	metrics.TranslationCacheLookups.WithLabelValues("miss").Inc()

	tr, err := o.store.FindTranslation(ctx, messageID, targetLanguage)
	if err != nil {
		return nil, err
	}

	text := tr.TranslatedContent
	if tr.IsEncrypted {
		if tr.KeyID == nil || tr.IV == nil || tr.AuthTag == nil {
			return nil, fmt.Errorf("translation %s: missing encryption fields: %w", tr.ID, domain.ErrDecryptFailed)
		}
		text, err = o.enc.DecryptTranslation(ctx, msg.ConversationID, tr.TranslatedContent, *tr.KeyID, *tr.IV, *tr.AuthTag)
		if err != nil {
			return nil, fmt.Errorf("decrypt translation %s: %w", tr.ID, err)
		}
	}

	res := domain.TranslationResult{
		MessageID:       messageID,
		SourceLanguage:  msg.OriginalLanguage,
		TargetLanguage:  tr.TargetLanguage,
		TranslatedText:  text,
		TranslatorModel: tr.TranslationModel,
		ConfidenceScore: tr.ConfidenceScore,
	}
	o.translations.Set(key, res)
	return &res, nil
}

func (o *Orchestrator) notifySyncWaiter(messageID, target string, ev *protocol.TranslationCompleted) bool {
	o.waitersMu.Lock()
	defer o.waitersMu.Unlock()

	ch, ok := o.waiters[waiterKey(messageID, target)]
	if !ok {
		return false
	}
	select {
	case ch <- syncResult{completed: ev}:
	default:
	}
	return true
}

// failSyncWaiters delivers an error to every waiter of a message. Worker
// errors carry no target language, so all languages of the message fail.
func (o *Orchestrator) failSyncWaiters(messageID, errMsg string) {
	prefix := messageID + ":"
	o.waitersMu.Lock()
	defer o.waitersMu.Unlock()

	for key, ch := range o.waiters {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		select {
		case ch <- syncResult{errMsg: errMsg}:
		default:
		}
	}
}

func waiterKey(messageID, target string) string {
	return messageID + ":" + target
}

func toDomainResult(r *protocol.TranslationResult) domain.TranslationResult {
	return domain.TranslationResult{
		MessageID:        r.MessageID,
		SourceLanguage:   r.SourceLanguage,
		TargetLanguage:   r.TargetLanguage,
		TranslatedText:   r.TranslatedText,
		TranslatorModel:  r.TranslatorModel,
		ConfidenceScore:  r.ConfidenceScore,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

// mergeMeta folds envelope metadata under the payload's own, payload winning
// on key collisions.
func mergeMeta(payload, envelope map[string]interface{}) map[string]interface{} {
	if len(envelope) == 0 {
		return payload
	}
	merged := make(map[string]interface{}, len(payload)+len(envelope))
	for k, v := range envelope {
		merged[k] = v
	}
	for k, v := range payload {
		merged[k] = v
	}
	return merged
}
