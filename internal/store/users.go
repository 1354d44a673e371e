package store

import (
	"context"
	"fmt"
)

// IncrementUserTranslationsUsed bumps the per-user usage counter. Anonymous
// senders have no user row; a zero-row update is not an error.
func (s *Store) IncrementUserTranslationsUsed(ctx context.Context, userID string) error {
	query := `UPDATE users SET translations_used = translations_used + 1, updated_at = now() WHERE id = $1`

	_, err := s.conn(ctx).Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("increment translations used: %w", err)
	}
	return nil
}
