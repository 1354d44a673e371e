package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
)

func (s *Store) LoadVoiceProfile(ctx context.Context, userID string) (*domain.VoiceProfile, error) {
	query := `
		SELECT user_id, profile_id, embedding, quality_score, audio_count, total_duration_ms,
			version, fingerprint, voice_characteristics, chatterbox_conditionals,
			reference_audio_id, reference_audio_url, created_at, updated_at
		FROM voice_profiles
		WHERE user_id = $1`

	profile := &domain.VoiceProfile{}
	var characteristics []byte
	err := s.conn(ctx).QueryRow(ctx, query, userID).Scan(
		&profile.UserID, &profile.ProfileID, &profile.Embedding, &profile.QualityScore,
		&profile.AudioCount, &profile.TotalDurationMs, &profile.Version, &profile.Fingerprint,
		&characteristics, &profile.ChatterboxConditionals,
		&profile.ReferenceAudioID, &profile.ReferenceAudioURL,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load voice profile: %w", err)
	}

	if len(characteristics) > 0 {
		if err := json.Unmarshal(characteristics, &profile.VoiceCharacteristics); err != nil {
			return nil, fmt.Errorf("decode voice characteristics: %w", err)
		}
	}
	return profile, nil
}

// UpsertVoiceProfile keeps one profile per user. The version bump happens in
// the statement itself so concurrent uploads still produce a strictly
// increasing sequence.
func (s *Store) UpsertVoiceProfile(ctx context.Context, profile *domain.VoiceProfile) error {
	if profile.ProfileID == "" {
		profile.ProfileID = id.NewVoiceProfile()
	}

	var characteristics []byte
	if profile.VoiceCharacteristics != nil {
		var err error
		characteristics, err = json.Marshal(profile.VoiceCharacteristics)
		if err != nil {
			return fmt.Errorf("encode voice characteristics: %w", err)
		}
	}

	query := `
		INSERT INTO voice_profiles (user_id, profile_id, embedding, quality_score, audio_count,
			total_duration_ms, version, fingerprint, voice_characteristics, chatterbox_conditionals,
			reference_audio_id, reference_audio_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			embedding = EXCLUDED.embedding,
			quality_score = EXCLUDED.quality_score,
			audio_count = EXCLUDED.audio_count,
			total_duration_ms = EXCLUDED.total_duration_ms,
			version = voice_profiles.version + 1,
			fingerprint = EXCLUDED.fingerprint,
			voice_characteristics = COALESCE(EXCLUDED.voice_characteristics, voice_profiles.voice_characteristics),
			chatterbox_conditionals = COALESCE(EXCLUDED.chatterbox_conditionals, voice_profiles.chatterbox_conditionals),
			reference_audio_id = COALESCE(EXCLUDED.reference_audio_id, voice_profiles.reference_audio_id),
			reference_audio_url = COALESCE(EXCLUDED.reference_audio_url, voice_profiles.reference_audio_url),
			updated_at = now()
		RETURNING version`

	err := s.conn(ctx).QueryRow(ctx, query,
		profile.UserID, profile.ProfileID, profile.Embedding, profile.QualityScore,
		profile.AudioCount, profile.TotalDurationMs, profile.Fingerprint,
		characteristics, profile.ChatterboxConditionals,
		profile.ReferenceAudioID, profile.ReferenceAudioURL).Scan(&profile.Version)
	if err != nil {
		return fmt.Errorf("upsert voice profile: %w", err)
	}
	return nil
}
