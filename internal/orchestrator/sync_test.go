package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/protocol"
)

type syncOutcome struct {
	res *domain.TranslationResult
	err error
}

func translateAsync(env *testEnv, text, source, target, model string) chan syncOutcome {
	done := make(chan syncOutcome, 1)
	go func() {
		res, err := env.o.TranslateTextDirectly(context.Background(), text, source, target, model)
		done <- syncOutcome{res: res, err: err}
	}()
	return done
}

func waitOutcome(t *testing.T, done chan syncOutcome) *domain.TranslationResult {
	t.Helper()
	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("TranslateTextDirectly: %v", out.err)
		}
		return out.res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the sync translation")
		return nil
	}
}

func TestTranslateTextDirectlyDeliversWorkerResult(t *testing.T) {
	env := newTestEnv(t, Options{SyncTimeout: 2 * time.Second})

	done := translateAsync(env, "hello", "en", "fr", "")

	req := waitRequest(t, env.bus)
	if req.translation == nil {
		t.Fatal("expected a translation request")
	}
	if len(req.translation.TargetLanguages) != 1 || req.translation.TargetLanguages[0] != "fr" {
		t.Fatalf("targets = %v, want [fr]", req.translation.TargetLanguages)
	}
	if req.translation.ModelType != "medium" {
		t.Fatalf("model = %s, want medium for short text", req.translation.ModelType)
	}

	env.o.OnTranslationCompleted(context.Background(), req.taskID, &protocol.TranslationCompleted{
		TargetLanguage: "fr",
		Result: protocol.TranslationResult{
			MessageID:        req.translation.MessageID,
			SourceLanguage:   "en",
			TargetLanguage:   "fr",
			TranslatedText:   "bonjour",
			TranslatorModel:  "medium",
			ConfidenceScore:  0.93,
			ProcessingTimeMs: 120,
		},
	}, nil)

	res := waitOutcome(t, done)
	if res.TranslatedText != "bonjour" || res.TranslatorModel != "medium" {
		t.Fatalf("result = %+v", res)
	}

	// Nothing was persisted: the message id is synthetic.
	if got := env.store.upserts(); got != 0 {
		t.Fatalf("upserts = %d, want 0", got)
	}
}

func TestTranslateTextDirectlyTimesOutToFallback(t *testing.T) {
	env := newTestEnv(t, Options{SyncTimeout: 50 * time.Millisecond})

	done := translateAsync(env, "hello there", "en", "fr", "")
	req := waitRequest(t, env.bus)

	res := waitOutcome(t, done)
	if res.TranslatedText != "hello there" {
		t.Fatalf("fallback text = %q, want the original", res.TranslatedText)
	}
	if res.TranslatorModel != fallbackModel {
		t.Fatalf("fallback model = %s, want %s", res.TranslatorModel, fallbackModel)
	}
	if res.ConfidenceScore != 0.1 {
		t.Fatalf("fallback confidence = %v, want 0.1", res.ConfidenceScore)
	}

	// The late completion finds no waiter and no persisted message: dropped.
	env.o.OnTranslationCompleted(context.Background(), req.taskID, &protocol.TranslationCompleted{
		TargetLanguage: "fr",
		Result: protocol.TranslationResult{
			MessageID:      req.translation.MessageID,
			TargetLanguage: "fr",
			TranslatedText: "bonjour",
		},
	}, nil)
	if got := env.store.upserts(); got != 0 {
		t.Fatalf("late completion persisted: %d upserts", got)
	}
	expectNoEvent(t, env.emitter)
}

func TestTranslateTextDirectlyDispatchFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, Options{SyncTimeout: 2 * time.Second})
	env.bus.mu.Lock()
	env.bus.dispatchErr = errors.New("no translation workers")
	env.bus.mu.Unlock()

	res, err := env.o.TranslateTextDirectly(context.Background(), "hello", "en", "fr", "")
	if err != nil {
		t.Fatalf("TranslateTextDirectly: %v", err)
	}
	if res.TranslatorModel != fallbackModel || res.TranslatedText != "hello" {
		t.Fatalf("result = %+v, want immediate fallback", res)
	}
	if snap := env.stats.Snapshot(); snap.Errors != 1 {
		t.Fatalf("errors = %d, want 1", snap.Errors)
	}
}

func TestTranslateTextDirectlyWorkerErrorFallsBack(t *testing.T) {
	env := newTestEnv(t, Options{SyncTimeout: 2 * time.Second})

	done := translateAsync(env, "hello", "en", "fr", "premium")
	req := waitRequest(t, env.bus)
	if req.translation.ModelType != "premium" {
		t.Fatalf("model = %s, caller choice must pass through", req.translation.ModelType)
	}

	env.o.OnTranslationError(context.Background(), req.taskID, &protocol.TranslationError{
		MessageID: req.translation.MessageID,
		Error:     "model load failed",
	})

	res := waitOutcome(t, done)
	if res.TranslatorModel != fallbackModel {
		t.Fatalf("result = %+v, want fallback after worker error", res)
	}
}

func TestTranslateTextDirectlyRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t, Options{})

	if _, err := env.o.TranslateTextDirectly(context.Background(), "  ", "en", "fr", ""); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
	expectNoRequest(t, env.bus)
}

func TestTranslateTextDirectlyHonorsContext(t *testing.T) {
	env := newTestEnv(t, Options{SyncTimeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan syncOutcome, 1)
	go func() {
		res, err := env.o.TranslateTextDirectly(ctx, "hello", "en", "fr", "")
		done <- syncOutcome{res: res, err: err}
	}()
	waitRequest(t, env.bus)
	cancel()

	select {
	case out := <-done:
		if !errors.Is(out.err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", out.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not unblock the call")
	}
}
