package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meshychat/meshy/internal/domain"
)

func (s *Store) InsertMessage(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, anonymous_sender_id, content,
			original_language, message_type, reply_to_id, encryption_mode, model_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.conn(ctx).Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.AnonymousSenderID, msg.Content,
		msg.OriginalLanguage, msg.MessageType, msg.ReplyToID, msg.EncryptionMode, msg.ModelType, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) FindMessage(ctx context.Context, id string) (*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, anonymous_sender_id, content,
			original_language, message_type, reply_to_id, encryption_mode, model_type, created_at
		FROM messages
		WHERE id = $1`

	msg := &domain.Message{}
	err := s.conn(ctx).QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.AnonymousSenderID, &msg.Content,
		&msg.OriginalLanguage, &msg.MessageType, &msg.ReplyToID, &msg.EncryptionMode, &msg.ModelType, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return msg, nil
}
