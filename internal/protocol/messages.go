package protocol

// TranslationRequest (Type 1) is a text translation job dispatched to a
// translation worker. Completions arrive per target language.
type TranslationRequest struct {
	MessageID       string   `msgpack:"messageId" json:"messageId"`
	Text            string   `msgpack:"text" json:"text"`
	SourceLanguage  string   `msgpack:"sourceLanguage" json:"sourceLanguage"`
	TargetLanguages []string `msgpack:"targetLanguages" json:"targetLanguages"`
	ConversationID  string   `msgpack:"conversationId" json:"conversationId"`
	ModelType       string   `msgpack:"modelType,omitempty" json:"modelType,omitempty"`
}

// VoiceProfilePayload carries voice-clone material to a worker. Embedding and
// conditionals are base64 because some worker runtimes cannot consume bin frames.
type VoiceProfilePayload struct {
	ProfileID              string  `msgpack:"profileId" json:"profileId"`
	Embedding              string  `msgpack:"embedding,omitempty" json:"embedding,omitempty"`
	ChatterboxConditionals string  `msgpack:"chatterboxConditionals,omitempty" json:"chatterboxConditionals,omitempty"`
	Version                int     `msgpack:"version" json:"version"`
	QualityScore           float64 `msgpack:"qualityScore,omitempty" json:"qualityScore,omitempty"`
	ReferenceAudioID       string  `msgpack:"referenceAudioId,omitempty" json:"referenceAudioId,omitempty"`
	ReferenceAudioURL      string  `msgpack:"referenceAudioUrl,omitempty" json:"referenceAudioUrl,omitempty"`
}

// MobileTranscriptionPayload is a device-side transcription included with an
// audio job so the worker can skip or verify its own pass.
type MobileTranscriptionPayload struct {
	Text       string  `msgpack:"text" json:"text"`
	Language   string  `msgpack:"language" json:"language"`
	Confidence float64 `msgpack:"confidence,omitempty" json:"confidence,omitempty"`
}

// AudioProcessRequest (Type 2) is the combined transcribe+translate+synthesize
// job. Audio travels as a raw msgpack bin frame in Audio; AudioB64 exists only
// for workers that cannot emit or consume binary frames.
type AudioProcessRequest struct {
	MessageID           string                      `msgpack:"messageId" json:"messageId"`
	AttachmentID        string                      `msgpack:"attachmentId" json:"attachmentId"`
	ConversationID      string                      `msgpack:"conversationId" json:"conversationId"`
	SenderID            string                      `msgpack:"senderId" json:"senderId"`
	FileName            string                      `msgpack:"fileName" json:"fileName"`
	MimeType            string                      `msgpack:"mimeType" json:"mimeType"`
	DurationMs          int                         `msgpack:"durationMs,omitempty" json:"durationMs,omitempty"`
	Audio               []byte                      `msgpack:"audio,omitempty" json:"-"`
	AudioB64            string                      `msgpack:"audioB64,omitempty" json:"audioB64,omitempty"`
	SourceLanguage      string                      `msgpack:"sourceLanguage,omitempty" json:"sourceLanguage,omitempty"`
	TargetLanguages     []string                    `msgpack:"targetLanguages" json:"targetLanguages"`
	GenerateVoiceClone  bool                        `msgpack:"generateVoiceClone,omitempty" json:"generateVoiceClone,omitempty"`
	ModelType           string                      `msgpack:"modelType,omitempty" json:"modelType,omitempty"`
	MobileTranscription *MobileTranscriptionPayload `msgpack:"mobileTranscription,omitempty" json:"mobileTranscription,omitempty"`
	VoiceProfile        *VoiceProfilePayload        `msgpack:"voiceProfile,omitempty" json:"voiceProfile,omitempty"`
}

// TranscriptionRequest (Type 3) is a transcription-only job.
type TranscriptionRequest struct {
	MessageID      string `msgpack:"messageId" json:"messageId"`
	AttachmentID   string `msgpack:"attachmentId" json:"attachmentId"`
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	FileName       string `msgpack:"fileName" json:"fileName"`
	MimeType       string `msgpack:"mimeType" json:"mimeType"`
	Audio          []byte `msgpack:"audio,omitempty" json:"-"`
	AudioB64       string `msgpack:"audioB64,omitempty" json:"audioB64,omitempty"`
	Language       string `msgpack:"language,omitempty" json:"language,omitempty"`
}

// TranslationResult is the per-language payload inside a TranslationCompleted.
type TranslationResult struct {
	MessageID        string  `msgpack:"messageId" json:"messageId"`
	SourceLanguage   string  `msgpack:"sourceLanguage" json:"sourceLanguage"`
	TargetLanguage   string  `msgpack:"targetLanguage" json:"targetLanguage"`
	TranslatedText   string  `msgpack:"translatedText" json:"translatedText"`
	TranslatorModel  string  `msgpack:"translatorModel" json:"translatorModel"`
	ConfidenceScore  float64 `msgpack:"confidenceScore" json:"confidenceScore"`
	ProcessingTimeMs int64   `msgpack:"processingTimeMs,omitempty" json:"processingTimeMs,omitempty"`
}

// TranslationCompleted (Type 10)
type TranslationCompleted struct {
	Result         TranslationResult      `msgpack:"result" json:"result"`
	TargetLanguage string                 `msgpack:"targetLanguage" json:"targetLanguage"`
	Metadata       map[string]interface{} `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
}

// TranslationError (Type 11)
type TranslationError struct {
	MessageID      string `msgpack:"messageId" json:"messageId"`
	ConversationID string `msgpack:"conversationId,omitempty" json:"conversationId,omitempty"`
	Error          string `msgpack:"error" json:"error"`
}

// TranscriptionSegmentPayload is one timed segment of a transcription.
type TranscriptionSegmentPayload struct {
	Start     float64 `msgpack:"start" json:"start"`
	End       float64 `msgpack:"end" json:"end"`
	Text      string  `msgpack:"text" json:"text"`
	SpeakerID string  `msgpack:"speakerId,omitempty" json:"speakerId,omitempty"`
}

// TranscriptionPayload is a full transcription result from a worker.
type TranscriptionPayload struct {
	Text                  string                        `msgpack:"text" json:"text"`
	Language              string                        `msgpack:"language" json:"language"`
	Confidence            float64                       `msgpack:"confidence" json:"confidence"`
	Source                string                        `msgpack:"source" json:"source"`
	Segments              []TranscriptionSegmentPayload `msgpack:"segments,omitempty" json:"segments,omitempty"`
	SpeakerCount          int                           `msgpack:"speakerCount,omitempty" json:"speakerCount,omitempty"`
	PrimarySpeakerID      string                        `msgpack:"primarySpeakerId,omitempty" json:"primarySpeakerId,omitempty"`
	SenderVoiceIdentified bool                          `msgpack:"senderVoiceIdentified,omitempty" json:"senderVoiceIdentified,omitempty"`
	SenderSpeakerID       string                        `msgpack:"senderSpeakerId,omitempty" json:"senderSpeakerId,omitempty"`
	SpeakerAnalysis       map[string]interface{}        `msgpack:"speakerAnalysis,omitempty" json:"speakerAnalysis,omitempty"`
	DurationMs            int                           `msgpack:"durationMs,omitempty" json:"durationMs,omitempty"`
}

// TranscriptionReady (Type 12) is phase 1 of the audio pipeline: the
// transcription is done while translation and synthesis continue.
type TranscriptionReady struct {
	MessageID        string               `msgpack:"messageId" json:"messageId"`
	AttachmentID     string               `msgpack:"attachmentId" json:"attachmentId"`
	Transcription    TranscriptionPayload `msgpack:"transcription" json:"transcription"`
	ProcessingTimeMs int64                `msgpack:"processingTimeMs,omitempty" json:"processingTimeMs,omitempty"`
}

// TranslatedAudioPayload is one synthesized translation produced by a worker.
// Audio is preferred as a raw bin frame; AudioB64 is the compatibility fallback.
type TranslatedAudioPayload struct {
	TargetLanguage string                        `msgpack:"targetLanguage" json:"targetLanguage"`
	TranslatedText string                        `msgpack:"translatedText" json:"translatedText"`
	Audio          []byte                        `msgpack:"audio,omitempty" json:"-"`
	AudioB64       string                        `msgpack:"audioB64,omitempty" json:"audioB64,omitempty"`
	Format         string                        `msgpack:"format" json:"format"`
	DurationMs     int                           `msgpack:"durationMs,omitempty" json:"durationMs,omitempty"`
	VoiceCloned    bool                          `msgpack:"voiceCloned,omitempty" json:"voiceCloned,omitempty"`
	VoiceQuality   float64                       `msgpack:"voiceQuality,omitempty" json:"voiceQuality,omitempty"`
	Segments       []TranscriptionSegmentPayload `msgpack:"segments,omitempty" json:"segments,omitempty"`
	TTSModel       string                        `msgpack:"ttsModel,omitempty" json:"ttsModel,omitempty"`
}

// AudioTranslationEvent is the shared shape of Types 13, 14 and 15; the type
// distinguishes single-target terminal, multi-target progressive and
// multi-target final deliveries.
type AudioTranslationEvent struct {
	MessageID       string                 `msgpack:"messageId" json:"messageId"`
	AttachmentID    string                 `msgpack:"attachmentId" json:"attachmentId"`
	Language        string                 `msgpack:"language" json:"language"`
	TranslatedAudio TranslatedAudioPayload `msgpack:"translatedAudio" json:"translatedAudio"`
}

// AudioProcessCompleted (Type 16) is the legacy one-shot bundle.
type AudioProcessCompleted struct {
	MessageID       string                   `msgpack:"messageId" json:"messageId"`
	AttachmentID    string                   `msgpack:"attachmentId" json:"attachmentId"`
	Transcription   *TranscriptionPayload    `msgpack:"transcription,omitempty" json:"transcription,omitempty"`
	Translations    []TranslatedAudioPayload `msgpack:"translations,omitempty" json:"translations,omitempty"`
	NewVoiceProfile *VoiceProfilePayload     `msgpack:"newVoiceProfile,omitempty" json:"newVoiceProfile,omitempty"`
}

// AudioProcessError (Type 17)
type AudioProcessError struct {
	MessageID    string `msgpack:"messageId" json:"messageId"`
	AttachmentID string `msgpack:"attachmentId" json:"attachmentId"`
	Error        string `msgpack:"error" json:"error"`
	ErrorCode    string `msgpack:"errorCode,omitempty" json:"errorCode,omitempty"`
}

// TranscriptionCompleted (Type 18) is the transcription-only job result.
type TranscriptionCompleted struct {
	MessageID        string               `msgpack:"messageId" json:"messageId"`
	AttachmentID     string               `msgpack:"attachmentId" json:"attachmentId"`
	Transcription    TranscriptionPayload `msgpack:"transcription" json:"transcription"`
	ProcessingTimeMs int64                `msgpack:"processingTimeMs,omitempty" json:"processingTimeMs,omitempty"`
}

// TranscriptionOnlyError (Type 19)
type TranscriptionOnlyError struct {
	MessageID    string `msgpack:"messageId" json:"messageId"`
	AttachmentID string `msgpack:"attachmentId" json:"attachmentId"`
	Error        string `msgpack:"error" json:"error"`
}

// VoiceJobResult is the result block of a standalone voice job.
type VoiceJobResult struct {
	Transcription *TranscriptionPayload    `msgpack:"transcription,omitempty" json:"transcription,omitempty"`
	Translations  []TranslatedAudioPayload `msgpack:"translations,omitempty" json:"translations,omitempty"`
}

// VoiceTranslationCompleted (Type 20)
type VoiceTranslationCompleted struct {
	JobID  string         `msgpack:"jobId" json:"jobId"`
	UserID string         `msgpack:"userId" json:"userId"`
	Result VoiceJobResult `msgpack:"result" json:"result"`
}

// VoiceTranslationFailed (Type 21)
type VoiceTranslationFailed struct {
	JobID  string `msgpack:"jobId" json:"jobId"`
	UserID string `msgpack:"userId" json:"userId"`
	Error  string `msgpack:"error" json:"error"`
}

// Subscribe (Type 40)
type Subscribe struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	UserID         string `msgpack:"userId,omitempty" json:"userId,omitempty"`
}

// Unsubscribe (Type 41)
type Unsubscribe struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
}

// SubscribeAck (Type 42)
type SubscribeAck struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	Subscribed     bool   `msgpack:"subscribed" json:"subscribed"`
}
