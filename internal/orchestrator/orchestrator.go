// Package orchestrator coordinates the translation pipeline: message ingest,
// worker dispatch, completion persistence and client event emission.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/meshychat/meshy/internal/cache"
	"github.com/meshychat/meshy/internal/encryption"
	"github.com/meshychat/meshy/internal/ports"
	"github.com/meshychat/meshy/internal/protocol"
	"github.com/meshychat/meshy/internal/stats"
)

const (
	// DefaultSyncTimeout bounds the blocking wait of TranslateTextDirectly.
	DefaultSyncTimeout = 10 * time.Second

	// dispatchTimeout bounds the detached fanout work that follows a
	// message ack.
	dispatchTimeout = 30 * time.Second

	// autoModelThreshold is the content length in characters at which the
	// automatic model choice switches from medium to premium.
	autoModelThreshold = 80
)

// audioFallbackTargets is used when a conversation has no language
// preferences but translated audio is permitted.
var audioFallbackTargets = []string{"en", "fr"}

// Status tokens returned in a MessageAck.
const (
	StatusMessageSaved        = "message_saved"
	StatusRetranslationQueued = "retranslation_queued"
	StatusE2EESkipped         = "e2ee_skipped"
)

type syncResult struct {
	completed *protocol.TranslationCompleted
	errMsg    string
}

// Orchestrator wires the store, the worker bus, the client emitter and the
// caches into the translation pipeline. It is the bus listener: worker
// completions arrive through the ports.BusListener methods.
type Orchestrator struct {
	store   ports.Store
	bus     ports.Bus
	emitter ports.Emitter
	consent ports.ConsentService
	stats   *stats.Stats
	enc     *encryption.Helper

	translations *cache.TranslationCache
	languages    *cache.LanguageCache
	processed    *cache.ProcessedTaskSet
	pending      *cache.PendingTasks

	uploadsRoot string
	syncTimeout time.Duration

	waitersMu sync.Mutex
	waiters   map[string]chan syncResult
}

// Options tunes the orchestrator. Zero values fall back to the documented
// defaults; nil caches are created with default capacities.
type Options struct {
	Encryption   *encryption.Helper
	Translations *cache.TranslationCache
	Languages    *cache.LanguageCache
	Processed    *cache.ProcessedTaskSet
	Pending      *cache.PendingTasks

	UploadsRoot string
	SyncTimeout time.Duration
}

func New(
	store ports.Store,
	bus ports.Bus,
	emitter ports.Emitter,
	consent ports.ConsentService,
	st *stats.Stats,
	opts Options,
) *Orchestrator {
	if opts.Encryption == nil {
		opts.Encryption = encryption.NewHelper(store)
	}
	if opts.Translations == nil {
		opts.Translations = cache.NewTranslationCache(0)
	}
	if opts.Languages == nil {
		opts.Languages = cache.NewLanguageCache(0, 0)
	}
	if opts.Processed == nil {
		opts.Processed = cache.NewProcessedTaskSet(0)
	}
	if opts.Pending == nil {
		opts.Pending = cache.NewPendingTasks(nil)
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = DefaultSyncTimeout
	}
	if opts.UploadsRoot == "" {
		opts.UploadsRoot = "./uploads"
	}

	o := &Orchestrator{
		store:        store,
		bus:          bus,
		emitter:      emitter,
		consent:      consent,
		stats:        st,
		enc:          opts.Encryption,
		translations: opts.Translations,
		languages:    opts.Languages,
		processed:    opts.Processed,
		pending:      opts.Pending,
		uploadsRoot:  opts.UploadsRoot,
		syncTimeout:  opts.SyncTimeout,
		waiters:      make(map[string]chan syncResult),
	}

	// Replaces any previous listener so re-initialization cannot double-deliver.
	bus.SetListener(o)
	return o
}

var _ ports.BusListener = (*Orchestrator)(nil)

// conversationForTask resolves the conversation an event belongs to: the
// pending-task record first, the parent message as fallback.
func (o *Orchestrator) conversationForTask(ctx context.Context, taskID, messageID string) string {
	if taskID != "" {
		if task, ok := o.pending.Get(ctx, taskID); ok && task.ConversationID != "" {
			return task.ConversationID
		}
	}
	if messageID != "" {
		if msg, err := o.store.FindMessage(ctx, messageID); err == nil {
			return msg.ConversationID
		}
	}
	return ""
}
