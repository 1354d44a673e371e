package store

import (
	"context"
	"fmt"
)

// InitSchema creates the tables and indexes the orchestrator relies on.
// Every statement is idempotent so restarts are safe.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'direct',
			last_message_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			user_id TEXT NOT NULL,
			system_language TEXT NOT NULL DEFAULT 'en',
			regional_language TEXT,
			custom_destination_language TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS anonymous_participants (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			language TEXT NOT NULL DEFAULT 'en',
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX IF NOT EXISTS idx_anonymous_participants_conversation
			ON anonymous_participants(conversation_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id TEXT,
			anonymous_sender_id TEXT,
			content TEXT NOT NULL DEFAULT '',
			original_language TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT 'text',
			reply_to_id TEXT,
			encryption_mode TEXT NOT NULL DEFAULT 'none',
			model_type TEXT NOT NULL DEFAULT 'medium',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (num_nonnulls(sender_id, anonymous_sender_id) = 1)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

		CREATE TABLE IF NOT EXISTS message_translations (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(id),
			target_language TEXT NOT NULL,
			translated_content TEXT NOT NULL DEFAULT '',
			translation_model TEXT NOT NULL DEFAULT '',
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
			key_id TEXT,
			iv TEXT,
			auth_tag TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_message_translations_message_lang
			ON message_translations(message_id, target_language);

		CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(id),
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			file_name TEXT NOT NULL DEFAULT '',
			file_url TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			transcription JSONB,
			translations JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);

		CREATE TABLE IF NOT EXISTS voice_profiles (
			user_id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			embedding BYTEA,
			quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			audio_count INTEGER NOT NULL DEFAULT 0,
			total_duration_ms INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			fingerprint TEXT,
			voice_characteristics JSONB,
			chatterbox_conditionals BYTEA,
			reference_audio_id TEXT,
			reference_audio_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS conversation_keys (
			key_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			purpose TEXT NOT NULL DEFAULT 'conversation',
			key_material BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_keys_conversation
			ON conversation_keys(conversation_id, purpose);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			translations_used BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
