// Package protocol defines the Meshy binary wire protocol spoken on both
// WebSocket surfaces: worker connections (translation/voice jobs and their
// completions) and client connections (subscriptions and domain events).
package protocol

// MessageType represents the type of protocol message
type MessageType uint16

const (
	// TypeTranslationRequest (1) - Text translation job, server to worker
	TypeTranslationRequest MessageType = 1
	// TypeAudioProcessRequest (2) - Combined transcribe+translate+TTS job with binary audio
	TypeAudioProcessRequest MessageType = 2
	// TypeTranscriptionRequest (3) - Transcription-only job with binary audio
	TypeTranscriptionRequest MessageType = 3

	// TypeTranslationCompleted (10) - Per-language text translation result
	TypeTranslationCompleted MessageType = 10
	// TypeTranslationError (11) - Text translation failure
	TypeTranslationError MessageType = 11
	// TypeTranscriptionReady (12) - Audio pipeline phase 1: transcription done
	TypeTranscriptionReady MessageType = 12
	// TypeAudioTranslationReady (13) - Single-target translated audio, terminal
	TypeAudioTranslationReady MessageType = 13
	// TypeAudioTranslationsProgressive (14) - Multi-target translated audio, non-final
	TypeAudioTranslationsProgressive MessageType = 14
	// TypeAudioTranslationsCompleted (15) - Multi-target translated audio, final
	TypeAudioTranslationsCompleted MessageType = 15
	// TypeAudioProcessCompleted (16) - Legacy one-shot bundle (transcription + all audio)
	TypeAudioProcessCompleted MessageType = 16
	// TypeAudioProcessError (17) - Audio pipeline failure
	TypeAudioProcessError MessageType = 17
	// TypeTranscriptionCompleted (18) - Transcription-only job result
	TypeTranscriptionCompleted MessageType = 18
	// TypeTranscriptionError (19) - Transcription-only job failure
	TypeTranscriptionError MessageType = 19
	// TypeVoiceTranslationCompleted (20) - Standalone voice job result, keyed on job id
	TypeVoiceTranslationCompleted MessageType = 20
	// TypeVoiceTranslationFailed (21) - Standalone voice job failure
	TypeVoiceTranslationFailed MessageType = 21

	// TypeSubscribe (40) - Client subscribes to a conversation
	TypeSubscribe MessageType = 40
	// TypeUnsubscribe (41) - Client unsubscribes from a conversation
	TypeUnsubscribe MessageType = 41
	// TypeSubscribeAck (42) - Server acknowledges subscription
	TypeSubscribeAck MessageType = 42

	// TypeTranslationReadyEvent (50) - Translation persisted, pushed to clients
	TypeTranslationReadyEvent MessageType = 50
	// TypeTranscriptionReadyEvent (51) - Transcription persisted, pushed to clients
	TypeTranscriptionReadyEvent MessageType = 51
	// TypeAudioTranslationReadyEvent (52) - Single-target translated audio saved
	TypeAudioTranslationReadyEvent MessageType = 52
	// TypeAudioTranslationsProgressiveEvent (53) - Per-language audio saved, more coming
	TypeAudioTranslationsProgressiveEvent MessageType = 53
	// TypeAudioTranslationsCompletedEvent (54) - Per-language audio saved, task done
	TypeAudioTranslationsCompletedEvent MessageType = 54
	// TypeAudioTranslationErrorEvent (55) - Audio pipeline failure, pushed to clients
	TypeAudioTranslationErrorEvent MessageType = 55
	// TypeTranscriptionErrorEvent (56) - Transcription failure, pushed to clients
	TypeTranscriptionErrorEvent MessageType = 56
	// TypeVoiceJobCompletedEvent (57) - Standalone voice job result for its requester
	TypeVoiceJobCompletedEvent MessageType = 57
	// TypeVoiceJobFailedEvent (58) - Standalone voice job failure for its requester
	TypeVoiceJobFailedEvent MessageType = 58
)

func (t MessageType) String() string {
	switch t {
	case TypeTranslationRequest:
		return "TranslationRequest"
	case TypeAudioProcessRequest:
		return "AudioProcessRequest"
	case TypeTranscriptionRequest:
		return "TranscriptionRequest"
	case TypeTranslationCompleted:
		return "TranslationCompleted"
	case TypeTranslationError:
		return "TranslationError"
	case TypeTranscriptionReady:
		return "TranscriptionReady"
	case TypeAudioTranslationReady:
		return "AudioTranslationReady"
	case TypeAudioTranslationsProgressive:
		return "AudioTranslationsProgressive"
	case TypeAudioTranslationsCompleted:
		return "AudioTranslationsCompleted"
	case TypeAudioProcessCompleted:
		return "AudioProcessCompleted"
	case TypeAudioProcessError:
		return "AudioProcessError"
	case TypeTranscriptionCompleted:
		return "TranscriptionCompleted"
	case TypeTranscriptionError:
		return "TranscriptionError"
	case TypeVoiceTranslationCompleted:
		return "VoiceTranslationCompleted"
	case TypeVoiceTranslationFailed:
		return "VoiceTranslationFailed"
	case TypeSubscribe:
		return "Subscribe"
	case TypeUnsubscribe:
		return "Unsubscribe"
	case TypeSubscribeAck:
		return "SubscribeAck"
	case TypeTranslationReadyEvent:
		return "TranslationReadyEvent"
	case TypeTranscriptionReadyEvent:
		return "TranscriptionReadyEvent"
	case TypeAudioTranslationReadyEvent:
		return "AudioTranslationReadyEvent"
	case TypeAudioTranslationsProgressiveEvent:
		return "AudioTranslationsProgressiveEvent"
	case TypeAudioTranslationsCompletedEvent:
		return "AudioTranslationsCompletedEvent"
	case TypeAudioTranslationErrorEvent:
		return "AudioTranslationErrorEvent"
	case TypeTranscriptionErrorEvent:
		return "TranscriptionErrorEvent"
	case TypeVoiceJobCompletedEvent:
		return "VoiceJobCompletedEvent"
	case TypeVoiceJobFailedEvent:
		return "VoiceJobFailedEvent"
	default:
		return "Unknown"
	}
}
