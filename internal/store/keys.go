package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meshychat/meshy/internal/domain"
)

// LoadConversationEncryptionKey returns the newest conversation-purpose key.
func (s *Store) LoadConversationEncryptionKey(ctx context.Context, conversationID string) (*domain.ConversationKey, error) {
	query := `
		SELECT key_id, conversation_id, purpose, key_material, created_at
		FROM conversation_keys
		WHERE conversation_id = $1 AND purpose = 'conversation'
		ORDER BY created_at DESC
		LIMIT 1`

	key := &domain.ConversationKey{}
	err := s.conn(ctx).QueryRow(ctx, query, conversationID).Scan(
		&key.KeyID, &key.ConversationID, &key.Purpose, &key.Key, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load conversation key: %w", err)
	}
	return key, nil
}
