package domain

import "time"

// EncryptionMode controls how message content and its translations are stored.
type EncryptionMode string

const (
	EncryptionNone   EncryptionMode = "none"
	EncryptionE2EE   EncryptionMode = "e2ee"
	EncryptionServer EncryptionMode = "server"
	EncryptionHybrid EncryptionMode = "hybrid"
)

// ServerReadable reports whether the server holds key material for this mode
// and may decrypt content for translation.
func (m EncryptionMode) ServerReadable() bool {
	return m == EncryptionServer || m == EncryptionHybrid
}

type ModelType string

const (
	ModelTypeMedium   ModelType = "medium"
	ModelTypePremium  ModelType = "premium"
	ModelTypeFallback ModelType = "fallback"
)

type Conversation struct {
	ID            string     `json:"id"`
	Identifier    string     `json:"identifier"`
	Title         string     `json:"title"`
	Type          string     `json:"type"` // direct, group
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Message struct {
	ID                string         `json:"id"`
	ConversationID    string         `json:"conversation_id"`
	SenderID          *string        `json:"sender_id,omitempty"`
	AnonymousSenderID *string        `json:"anonymous_sender_id,omitempty"`
	Content           string         `json:"content"`
	OriginalLanguage  string         `json:"original_language"`
	MessageType       string         `json:"message_type"` // text, audio, file
	ReplyToID         *string        `json:"reply_to_id,omitempty"`
	EncryptionMode    EncryptionMode `json:"encryption_mode"`
	ModelType         ModelType      `json:"model_type,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Translation struct {
	ID                string    `json:"id"`
	MessageID         string    `json:"message_id"`
	TargetLanguage    string    `json:"target_language"`
	TranslatedContent string    `json:"translated_content"`
	TranslationModel  string    `json:"translation_model"`
	ConfidenceScore   float64   `json:"confidence_score"`
	IsEncrypted       bool      `json:"is_encrypted"`
	KeyID             *string   `json:"key_id,omitempty"`
	IV                *string   `json:"iv,omitempty"`
	AuthTag           *string   `json:"auth_tag,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConversationKey is the 32-byte symmetric key bound to a conversation,
// used for AES-GCM encryption of server-readable content.
type ConversationKey struct {
	KeyID          string    `json:"key_id"`
	ConversationID string    `json:"conversation_id"`
	Purpose        string    `json:"purpose"` // conversation
	Key            []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type TranscriptionSource string

const (
	TranscriptionSourceMobile   TranscriptionSource = "mobile"
	TranscriptionSourceWhisper  TranscriptionSource = "whisper"
	TranscriptionSourceVoiceAPI TranscriptionSource = "voice_api"
)

type TranscriptionSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

type TranscriptionRecord struct {
	Text                  string                 `json:"text"`
	Language              string                 `json:"language"`
	Confidence            float64                `json:"confidence"`
	Source                TranscriptionSource    `json:"source"`
	Segments              []TranscriptionSegment `json:"segments,omitempty"`
	SpeakerCount          int                    `json:"speaker_count,omitempty"`
	PrimarySpeakerID      string                 `json:"primary_speaker_id,omitempty"`
	SenderVoiceIdentified bool                   `json:"sender_voice_identified,omitempty"`
	SenderSpeakerID       string                 `json:"sender_speaker_id,omitempty"`
	SpeakerAnalysis       map[string]any         `json:"speaker_analysis,omitempty"`
	DurationMs            int                    `json:"duration_ms"`
}

type TranslatedAudioRecord struct {
	TargetLanguage string                 `json:"target_language"`
	TranslatedText string                 `json:"translated_text"`
	StoragePath    string                 `json:"storage_path"`
	URL            string                 `json:"url"`
	DurationMs     int                    `json:"duration_ms"`
	Format         string                 `json:"format"`
	VoiceCloned    bool                   `json:"voice_cloned"`
	VoiceQuality   float64                `json:"voice_quality,omitempty"`
	Segments       []TranscriptionSegment `json:"segments,omitempty"`
	TTSModel       string                 `json:"tts_model,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type Attachment struct {
	ID             string                           `json:"id"`
	MessageID      string                           `json:"message_id"`
	ConversationID string                           `json:"conversation_id"`
	FileName       string                           `json:"file_name"`
	FileURL        string                           `json:"file_url"`
	MimeType       string                           `json:"mime_type"`
	DurationMs     int                              `json:"duration_ms,omitempty"`
	Transcription  *TranscriptionRecord             `json:"transcription,omitempty"`
	Translations   map[string]TranslatedAudioRecord `json:"translations,omitempty"`
	CreatedAt      time.Time                        `json:"created_at"`
	UpdatedAt      time.Time                        `json:"updated_at"`
}

// VoiceProfile holds per-user voice embedding material for cloned TTS.
// One profile per user; Version increases monotonically on replacement.
type VoiceProfile struct {
	UserID                 string         `json:"user_id"`
	ProfileID              string         `json:"profile_id"`
	Embedding              []byte         `json:"-"`
	QualityScore           float64        `json:"quality_score"`
	AudioCount             int            `json:"audio_count"`
	TotalDurationMs        int            `json:"total_duration_ms"`
	Version                int            `json:"version"`
	Fingerprint            *string        `json:"fingerprint,omitempty"`
	VoiceCharacteristics   map[string]any `json:"voice_characteristics,omitempty"`
	ChatterboxConditionals []byte         `json:"-"`
	ReferenceAudioID       *string        `json:"reference_audio_id,omitempty"`
	ReferenceAudioURL      *string        `json:"reference_audio_url,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// ConversationMember is a registered participant; the three language fields
// union into the conversation's translation target set.
type ConversationMember struct {
	ConversationID            string  `json:"conversation_id"`
	UserID                    string  `json:"user_id"`
	SystemLanguage            string  `json:"system_language"`
	RegionalLanguage          *string `json:"regional_language,omitempty"`
	CustomDestinationLanguage *string `json:"custom_destination_language,omitempty"`
	Active                    bool    `json:"active"`
}

// AnonymousParticipant is an unregistered guest contributing a single language.
type AnonymousParticipant struct {
	ConversationID string `json:"conversation_id"`
	ID             string `json:"id"`
	Language       string `json:"language"`
	Active         bool   `json:"active"`
}

// ConsentStatus mirrors the consent service response for a single user.
type ConsentStatus struct {
	CanTranscribeAudio         bool `json:"canTranscribeAudio"`
	CanTranslateAudio          bool `json:"canTranslateAudio"`
	CanGenerateTranslatedAudio bool `json:"canGenerateTranslatedAudio"`
	CanUseVoiceCloning         bool `json:"canUseVoiceCloning"`
	HasVoiceDataConsent        bool `json:"hasVoiceDataConsent"`
}

// TranslationResult is a completed translation as produced by a worker,
// before persistence or encryption.
type TranslationResult struct {
	MessageID        string  `json:"message_id"`
	SourceLanguage   string  `json:"source_language"`
	TargetLanguage   string  `json:"target_language"`
	TranslatedText   string  `json:"translated_text"`
	TranslatorModel  string  `json:"translator_model"`
	ConfidenceScore  float64 `json:"confidence_score"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
}

// PendingTask is the dispatch-time context kept per bus task id so that
// asynchronous completions can be re-associated after the fact.
type PendingTask struct {
	MessageID      string `json:"message_id,omitempty"`
	AttachmentID   string `json:"attachment_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}
