package ports

import (
	"context"

	"github.com/meshychat/meshy/internal/protocol"
)

// Bus is the transport to the remote worker pool. Requests return a synthetic
// task id; completions arrive asynchronously through the registered listener.
type Bus interface {
	RequestTranslation(ctx context.Context, req *protocol.TranslationRequest) (string, error)
	// RequestAudioJob ships the raw audio bytes inside the request as a binary
	// frame, never a URL.
	RequestAudioJob(ctx context.Context, req *protocol.AudioProcessRequest) (string, error)
	RequestTranscription(ctx context.Context, req *protocol.TranscriptionRequest) (string, error)

	// SetListener registers the completion listener, replacing any previous
	// one so re-initialization cannot double-deliver.
	SetListener(l BusListener)
}

// BusListener receives worker completion events. One callback per subscribed
// event; taskID comes from the envelope.
type BusListener interface {
	OnTranslationCompleted(ctx context.Context, taskID string, ev *protocol.TranslationCompleted, meta map[string]interface{})
	OnTranslationError(ctx context.Context, taskID string, ev *protocol.TranslationError)

	OnTranscriptionReady(ctx context.Context, taskID string, ev *protocol.TranscriptionReady)
	OnAudioTranslationReady(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent)
	OnAudioTranslationsProgressive(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent)
	OnAudioTranslationsCompleted(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent)
	OnAudioProcessCompleted(ctx context.Context, taskID string, ev *protocol.AudioProcessCompleted)
	OnAudioProcessError(ctx context.Context, taskID string, ev *protocol.AudioProcessError)

	OnTranscriptionCompleted(ctx context.Context, taskID string, ev *protocol.TranscriptionCompleted)
	OnTranscriptionError(ctx context.Context, taskID string, ev *protocol.TranscriptionOnlyError)

	OnVoiceTranslationCompleted(ctx context.Context, ev *protocol.VoiceTranslationCompleted)
	OnVoiceTranslationFailed(ctx context.Context, ev *protocol.VoiceTranslationFailed)
}
