package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
)

// UpsertTranslation writes the translation for (message_id, target_language),
// replacing an existing row. Legacy duplicate rows for the pair are removed
// first; when the unique index is missing the write degrades to
// find-then-update-or-create.
func (s *Store) UpsertTranslation(ctx context.Context, tr *domain.Translation) error {
	if tr.ID == "" {
		tr.ID = id.NewTranslation()
	}

	return s.WithTx(ctx, func(ctx context.Context) error {
		if err := s.cleanupDuplicateTranslations(ctx, tr.MessageID, tr.TargetLanguage); err != nil {
			return err
		}

		err := s.upsertTranslationRow(ctx, tr)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P10" {
			slog.Warn("store: translation upsert index unavailable, using fallback",
				"message_id", tr.MessageID, "target_language", tr.TargetLanguage)
			return s.updateOrCreateTranslation(ctx, tr)
		}
		return err
	})
}

// cleanupDuplicateTranslations removes all but the most recent row for the
// pair. Rows predating the unique index can violate it.
func (s *Store) cleanupDuplicateTranslations(ctx context.Context, messageID, targetLanguage string) error {
	query := `
		DELETE FROM message_translations
		WHERE message_id = $1 AND target_language = $2
			AND id NOT IN (
				SELECT id FROM message_translations
				WHERE message_id = $1 AND target_language = $2
				ORDER BY created_at DESC
				LIMIT 1
			)`

	tag, err := s.conn(ctx).Exec(ctx, query, messageID, targetLanguage)
	if err != nil {
		return fmt.Errorf("cleanup duplicate translations: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("store: removed duplicate translations",
			"message_id", messageID, "target_language", targetLanguage, "count", n)
	}
	return nil
}

func (s *Store) upsertTranslationRow(ctx context.Context, tr *domain.Translation) error {
	query := `
		INSERT INTO message_translations (id, message_id, target_language, translated_content,
			translation_model, confidence_score, is_encrypted, key_id, iv, auth_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (message_id, target_language) DO UPDATE SET
			translated_content = EXCLUDED.translated_content,
			translation_model = EXCLUDED.translation_model,
			confidence_score = EXCLUDED.confidence_score,
			is_encrypted = EXCLUDED.is_encrypted,
			key_id = EXCLUDED.key_id,
			iv = EXCLUDED.iv,
			auth_tag = EXCLUDED.auth_tag,
			created_at = EXCLUDED.created_at
		RETURNING id`

	err := s.conn(ctx).QueryRow(ctx, query,
		tr.ID, tr.MessageID, tr.TargetLanguage, tr.TranslatedContent,
		tr.TranslationModel, tr.ConfidenceScore, tr.IsEncrypted,
		tr.KeyID, tr.IV, tr.AuthTag, tr.CreatedAt).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("upsert translation: %w", err)
	}
	return nil
}

func (s *Store) updateOrCreateTranslation(ctx context.Context, tr *domain.Translation) error {
	var existingID string
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT id FROM message_translations
		WHERE message_id = $1 AND target_language = $2
		ORDER BY created_at DESC
		LIMIT 1`, tr.MessageID, tr.TargetLanguage).Scan(&existingID)

	if errors.Is(err, pgx.ErrNoRows) {
		_, err := s.conn(ctx).Exec(ctx, `
			INSERT INTO message_translations (id, message_id, target_language, translated_content,
				translation_model, confidence_score, is_encrypted, key_id, iv, auth_tag, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			tr.ID, tr.MessageID, tr.TargetLanguage, tr.TranslatedContent,
			tr.TranslationModel, tr.ConfidenceScore, tr.IsEncrypted,
			tr.KeyID, tr.IV, tr.AuthTag, tr.CreatedAt)
		if err != nil {
			return fmt.Errorf("create translation: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("find existing translation: %w", err)
	}

	_, err = s.conn(ctx).Exec(ctx, `
		UPDATE message_translations
		SET translated_content = $2, translation_model = $3, confidence_score = $4,
			is_encrypted = $5, key_id = $6, iv = $7, auth_tag = $8, created_at = $9
		WHERE id = $1`,
		existingID, tr.TranslatedContent, tr.TranslationModel, tr.ConfidenceScore,
		tr.IsEncrypted, tr.KeyID, tr.IV, tr.AuthTag, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("update translation: %w", err)
	}
	tr.ID = existingID
	return nil
}

// FindTranslation returns the newest row for (message_id, target_language).
func (s *Store) FindTranslation(ctx context.Context, messageID, targetLanguage string) (*domain.Translation, error) {
	query := `
		SELECT id, message_id, target_language, translated_content, translation_model,
			confidence_score, is_encrypted, key_id, iv, auth_tag, created_at
		FROM message_translations
		WHERE message_id = $1 AND target_language = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var tr domain.Translation
	err := s.conn(ctx).QueryRow(ctx, query, messageID, targetLanguage).Scan(
		&tr.ID, &tr.MessageID, &tr.TargetLanguage, &tr.TranslatedContent, &tr.TranslationModel,
		&tr.ConfidenceScore, &tr.IsEncrypted, &tr.KeyID, &tr.IV, &tr.AuthTag, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find translation: %w", err)
	}
	return &tr, nil
}

// DeleteTranslations removes the rows for the given target languages; used
// when a message is retranslated.
func (s *Store) DeleteTranslations(ctx context.Context, messageID string, languages []string) error {
	if len(languages) == 0 {
		return nil
	}

	query := `DELETE FROM message_translations WHERE message_id = $1 AND target_language = ANY($2)`

	_, err := s.conn(ctx).Exec(ctx, query, messageID, languages)
	if err != nil {
		return fmt.Errorf("delete translations: %w", err)
	}
	return nil
}
