package ports

import (
	"context"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/protocol"
)

// Emitter delivers domain events to the client fanout layer. Emission happens
// after the underlying state is persisted; implementations must not block the
// caller on slow consumers.
type Emitter interface {
	EmitTranslationReady(ev *protocol.TranslationReadyEvent)
	EmitTranscriptionReady(ev *protocol.TranscriptionReadyEvent)
	EmitAudioTranslationReady(ev *protocol.AudioTranslationReadyEvent)
	EmitAudioTranslationsProgressive(ev *protocol.AudioTranslationReadyEvent)
	EmitAudioTranslationsCompleted(ev *protocol.AudioTranslationReadyEvent)
	EmitAudioTranslationError(ev *protocol.AudioTranslationErrorEvent)
	EmitTranscriptionError(ev *protocol.TranscriptionErrorEvent)
	EmitVoiceJobCompleted(ev *protocol.VoiceJobCompletedEvent)
	EmitVoiceJobFailed(ev *protocol.VoiceJobFailedEvent)
}

// ConsentService resolves a user's voice-data consent capabilities.
type ConsentService interface {
	GetConsentStatus(ctx context.Context, userID string) (*domain.ConsentStatus, error)
}
