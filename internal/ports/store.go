package ports

import (
	"context"
	"time"

	"github.com/meshychat/meshy/internal/domain"
)

// Store defines the persistence operations the orchestrator consumes.
type Store interface {
	// CreateConversationIfAbsent inserts the conversation unless a row with
	// the same id already exists.
	CreateConversationIfAbsent(ctx context.Context, conv *domain.Conversation) error
	InsertMessage(ctx context.Context, msg *domain.Message) error
	TouchConversationLastMessageAt(ctx context.Context, conversationID string, at time.Time) error
	FindMessage(ctx context.Context, id string) (*domain.Message, error)

	// GetConversationLanguages returns the deduplicated union of the language
	// preferences of active members and active anonymous participants.
	GetConversationLanguages(ctx context.Context, conversationID string) ([]string, error)

	// UpsertTranslation writes the translation for (message_id, target_language),
	// replacing an existing row. Implementations clean up legacy duplicate rows
	// before upserting and fall back to find-then-update-or-create when the
	// composite unique index is unavailable.
	UpsertTranslation(ctx context.Context, tr *domain.Translation) error
	FindTranslation(ctx context.Context, messageID, targetLanguage string) (*domain.Translation, error)
	DeleteTranslations(ctx context.Context, messageID string, languages []string) error
	IncrementUserTranslationsUsed(ctx context.Context, userID string) error

	FindAttachment(ctx context.Context, id string) (*domain.Attachment, error)
	UpdateAttachmentTranscription(ctx context.Context, attachmentID string, rec *domain.TranscriptionRecord) error
	// UpdateAttachmentTranslations merges the given entries into the
	// attachment's translations map, replacing per-language entries.
	UpdateAttachmentTranslations(ctx context.Context, attachmentID string, translations map[string]domain.TranslatedAudioRecord) error

	LoadVoiceProfile(ctx context.Context, userID string) (*domain.VoiceProfile, error)
	// UpsertVoiceProfile keeps one profile per user and bumps Version
	// monotonically on replacement.
	UpsertVoiceProfile(ctx context.Context, profile *domain.VoiceProfile) error

	LoadConversationEncryptionKey(ctx context.Context, conversationID string) (*domain.ConversationKey, error)
}
