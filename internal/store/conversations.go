package store

import (
	"context"
	"fmt"
	"time"

	"github.com/meshychat/meshy/internal/domain"
)

// CreateConversationIfAbsent inserts the conversation, leaving an existing
// row with the same id untouched.
func (s *Store) CreateConversationIfAbsent(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, identifier, title, type, last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.conn(ctx).Exec(ctx, query,
		conv.ID, conv.Identifier, conv.Title, conv.Type,
		conv.LastMessageAt, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *Store) TouchConversationLastMessageAt(ctx context.Context, conversationID string, at time.Time) error {
	query := `UPDATE conversations SET last_message_at = $2, updated_at = $2 WHERE id = $1`

	_, err := s.conn(ctx).Exec(ctx, query, conversationID, at)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// GetConversationLanguages unions the language preferences of active members
// and active anonymous participants. UNION already deduplicates.
func (s *Store) GetConversationLanguages(ctx context.Context, conversationID string) ([]string, error) {
	query := `
		SELECT language FROM (
			SELECT system_language AS language FROM conversation_members
				WHERE conversation_id = $1 AND active
			UNION
			SELECT regional_language FROM conversation_members
				WHERE conversation_id = $1 AND active AND regional_language IS NOT NULL
			UNION
			SELECT custom_destination_language FROM conversation_members
				WHERE conversation_id = $1 AND active AND custom_destination_language IS NOT NULL
			UNION
			SELECT language FROM anonymous_participants
				WHERE conversation_id = $1 AND active
		) langs
		WHERE language <> ''
		ORDER BY language`

	rows, err := s.conn(ctx).Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation languages: %w", err)
	}
	defer rows.Close()

	var languages []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		languages = append(languages, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation languages: %w", err)
	}
	return languages, nil
}
