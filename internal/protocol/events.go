package protocol

// Domain events pushed to the client fanout layer after the orchestrator has
// persisted the underlying state. Event payloads carry URLs, never raw audio.

// TranslatedAudioRecord is the client-facing view of a saved translated audio.
type TranslatedAudioRecord struct {
	TargetLanguage string                        `msgpack:"targetLanguage" json:"targetLanguage"`
	TranslatedText string                        `msgpack:"translatedText" json:"translatedText"`
	URL            string                        `msgpack:"url" json:"url"`
	DurationMs     int                           `msgpack:"durationMs,omitempty" json:"durationMs,omitempty"`
	Format         string                        `msgpack:"format" json:"format"`
	VoiceCloned    bool                          `msgpack:"voiceCloned,omitempty" json:"voiceCloned,omitempty"`
	VoiceQuality   float64                       `msgpack:"voiceQuality,omitempty" json:"voiceQuality,omitempty"`
	Segments       []TranscriptionSegmentPayload `msgpack:"segments,omitempty" json:"segments,omitempty"`
	TTSModel       string                        `msgpack:"ttsModel,omitempty" json:"ttsModel,omitempty"`
}

// TranslationReadyEvent (Type 50)
type TranslationReadyEvent struct {
	TaskID         string                 `msgpack:"taskId" json:"taskId"`
	ConversationID string                 `msgpack:"conversationId" json:"conversationId"`
	Result         TranslationResult      `msgpack:"result" json:"result"`
	TargetLanguage string                 `msgpack:"targetLanguage" json:"targetLanguage"`
	TranslationID  string                 `msgpack:"translationId" json:"translationId"`
	Metadata       map[string]interface{} `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
}

// TranscriptionReadyEvent (Type 51). Phase "transcription" marks the event as
// non-terminal so clients keep the attachment in a loading state while
// synthesis continues; transcription-only jobs finish with phase "completed".
type TranscriptionReadyEvent struct {
	TaskID           string               `msgpack:"taskId" json:"taskId"`
	ConversationID   string               `msgpack:"conversationId" json:"conversationId"`
	MessageID        string               `msgpack:"messageId" json:"messageId"`
	AttachmentID     string               `msgpack:"attachmentId" json:"attachmentId"`
	Phase            string               `msgpack:"phase" json:"phase"`
	Transcription    TranscriptionPayload `msgpack:"transcription" json:"transcription"`
	ProcessingTimeMs int64                `msgpack:"processingTimeMs,omitempty" json:"processingTimeMs,omitempty"`
}

// AudioTranslationReadyEvent is the shared shape of Types 52, 53 and 54.
// For the legacy one-shot bundle, Saved carries every language at once.
type AudioTranslationReadyEvent struct {
	TaskID         string                  `msgpack:"taskId" json:"taskId"`
	ConversationID string                  `msgpack:"conversationId" json:"conversationId"`
	MessageID      string                  `msgpack:"messageId" json:"messageId"`
	AttachmentID   string                  `msgpack:"attachmentId" json:"attachmentId"`
	Language       string                  `msgpack:"language,omitempty" json:"language,omitempty"`
	Saved          []TranslatedAudioRecord `msgpack:"saved" json:"saved"`
}

// AudioTranslationErrorEvent (Type 55)
type AudioTranslationErrorEvent struct {
	TaskID         string `msgpack:"taskId" json:"taskId"`
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	MessageID      string `msgpack:"messageId" json:"messageId"`
	AttachmentID   string `msgpack:"attachmentId" json:"attachmentId"`
	Error          string `msgpack:"error" json:"error"`
	ErrorCode      string `msgpack:"errorCode,omitempty" json:"errorCode,omitempty"`
}

// TranscriptionErrorEvent (Type 56)
type TranscriptionErrorEvent struct {
	TaskID         string `msgpack:"taskId" json:"taskId"`
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	MessageID      string `msgpack:"messageId" json:"messageId"`
	AttachmentID   string `msgpack:"attachmentId" json:"attachmentId"`
	Error          string `msgpack:"error" json:"error"`
}

// VoiceJobCompletedEvent (Type 57) targets the requesting user rather than a
// conversation: standalone jobs have no attachment association.
type VoiceJobCompletedEvent struct {
	JobID  string         `msgpack:"jobId" json:"jobId"`
	UserID string         `msgpack:"userId" json:"userId"`
	Result VoiceJobResult `msgpack:"result" json:"result"`
}

// VoiceJobFailedEvent (Type 58)
type VoiceJobFailedEvent struct {
	JobID  string `msgpack:"jobId" json:"jobId"`
	UserID string `msgpack:"userId" json:"userId"`
	Error  string `msgpack:"error" json:"error"`
}
