package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meshychat/meshy/internal/domain"
)

func (s *Store) FindAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	query := `
		SELECT id, message_id, conversation_id, file_name, file_url, mime_type,
			duration_ms, transcription, translations, created_at, updated_at
		FROM attachments
		WHERE id = $1`

	att := &domain.Attachment{}
	var transcription, translations []byte
	err := s.conn(ctx).QueryRow(ctx, query, id).Scan(
		&att.ID, &att.MessageID, &att.ConversationID, &att.FileName, &att.FileURL,
		&att.MimeType, &att.DurationMs, &transcription, &translations,
		&att.CreatedAt, &att.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find attachment: %w", err)
	}

	if len(transcription) > 0 {
		var rec domain.TranscriptionRecord
		if err := json.Unmarshal(transcription, &rec); err != nil {
			return nil, fmt.Errorf("decode transcription: %w", err)
		}
		att.Transcription = &rec
	}

	att.Translations = make(map[string]domain.TranslatedAudioRecord)
	if len(translations) > 0 {
		if err := json.Unmarshal(translations, &att.Translations); err != nil {
			return nil, fmt.Errorf("decode translations: %w", err)
		}
	}
	return att, nil
}

func (s *Store) UpdateAttachmentTranscription(ctx context.Context, attachmentID string, rec *domain.TranscriptionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode transcription: %w", err)
	}

	query := `UPDATE attachments SET transcription = $2, updated_at = now() WHERE id = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, attachmentID, data)
	if err != nil {
		return fmt.Errorf("update attachment transcription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAttachmentTranslations merges the given per-language entries into the
// attachment's translations map. Existing languages not named are kept.
func (s *Store) UpdateAttachmentTranslations(ctx context.Context, attachmentID string, translations map[string]domain.TranslatedAudioRecord) error {
	if len(translations) == 0 {
		return nil
	}

	data, err := json.Marshal(translations)
	if err != nil {
		return fmt.Errorf("encode translations: %w", err)
	}

	query := `
		UPDATE attachments
		SET translations = COALESCE(translations, '{}'::jsonb) || $2::jsonb, updated_at = now()
		WHERE id = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, attachmentID, data)
	if err != nil {
		return fmt.Errorf("update attachment translations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
