package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/protocol"
)

// fallbackModel marks results that echo the original text because no worker
// answered in time.
const fallbackModel = "fallback"

// TranslateTextDirectly translates one text synchronously, without touching a
// conversation. The caller blocks until the worker answers, the sync timeout
// passes or ctx ends; timeouts and worker failures degrade to echoing the
// input so callers always get a usable result.
func (o *Orchestrator) TranslateTextDirectly(ctx context.Context, text, sourceLanguage, targetLanguage, modelType string) (*domain.TranslationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyContent
	}

	// Synthetic id: nothing is persisted, the id only correlates the
	// completion back to this call.
	messageID := id.NewMessage()

	ch := make(chan syncResult, 1)
	key := waiterKey(messageID, targetLanguage)
	o.waitersMu.Lock()
	o.waiters[key] = ch
	o.waitersMu.Unlock()
	defer func() {
		o.waitersMu.Lock()
		delete(o.waiters, key)
		o.waitersMu.Unlock()
	}()

	if modelType == "" {
		modelType = autoModelType(text)
	}

	taskID, err := o.bus.RequestTranslation(ctx, &protocol.TranslationRequest{
		MessageID:       messageID,
		Text:            text,
		SourceLanguage:  sourceLanguage,
		TargetLanguages: []string{targetLanguage},
		ModelType:       modelType,
	})
	if err != nil {
		slog.Warn("orchestrator: sync dispatch failed", "error", err, "target", targetLanguage)
		o.stats.IncErrors()
		return o.fallbackResult(messageID, text, sourceLanguage, targetLanguage), nil
	}
	o.stats.IncRequestsSent()

	timer := time.NewTimer(o.syncTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.errMsg != "" {
			slog.Warn("orchestrator: sync translation failed",
				"task_id", taskID, "target", targetLanguage, "worker_error", res.errMsg)
			return o.fallbackResult(messageID, text, sourceLanguage, targetLanguage), nil
		}
		o.stats.ObserveTranslation(time.Duration(res.completed.Result.ProcessingTimeMs) * time.Millisecond)
		out := toDomainResult(&res.completed.Result)
		return &out, nil
	case <-timer.C:
		slog.Warn("orchestrator: sync translation timed out",
			"task_id", taskID, "target", targetLanguage, "timeout", o.syncTimeout)
		return o.fallbackResult(messageID, text, sourceLanguage, targetLanguage), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) fallbackResult(messageID, text, sourceLanguage, targetLanguage string) *domain.TranslationResult {
	return &domain.TranslationResult{
		MessageID:       messageID,
		SourceLanguage:  sourceLanguage,
		TargetLanguage:  targetLanguage,
		TranslatedText:  text,
		TranslatorModel: fallbackModel,
		ConfidenceScore: 0.1,
	}
}
