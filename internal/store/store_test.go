package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/meshychat/meshy/internal/domain"
)

// setupMockContext places the mock where conn() looks for a transaction, so
// every statement runs against the mock instead of a pool.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateConversationIfAbsent(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	now := time.Now()
	conv := &domain.Conversation{
		ID:         "conv_1",
		Identifier: "mshy_team-standup-20250314092653",
		Title:      "Team Standup",
		Type:       "group",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(conv.ID, conv.Identifier, conv.Title, conv.Type, conv.LastMessageAt, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.CreateConversationIfAbsent(setupMockContext(mock), conv); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestTouchConversationLastMessageAt(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	at := time.Now()
	mock.ExpectExec("UPDATE conversations SET last_message_at").
		WithArgs("conv_1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.TouchConversationLastMessageAt(setupMockContext(mock), "conv_1", at); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetConversationLanguages(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectQuery("SELECT language FROM").
		WithArgs("conv_1").
		WillReturnRows(pgxmock.NewRows([]string{"language"}).
			AddRow("de").AddRow("en").AddRow("fr"))

	langs, err := s.GetConversationLanguages(setupMockContext(mock), "conv_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(langs) != 3 || langs[0] != "de" || langs[2] != "fr" {
		t.Errorf("unexpected languages: %v", langs)
	}
	expectationsMet(t, mock)
}

func TestInsertMessage(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	sender := "user_1"
	msg := &domain.Message{
		ID:               "msg_1",
		ConversationID:   "conv_1",
		SenderID:         &sender,
		Content:          "Hello",
		OriginalLanguage: "en",
		MessageType:      "text",
		EncryptionMode:   domain.EncryptionNone,
		ModelType:        domain.ModelTypeMedium,
		CreatedAt:        time.Now(),
	}

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(msg.ID, msg.ConversationID, msg.SenderID, msg.AnonymousSenderID, msg.Content,
			msg.OriginalLanguage, msg.MessageType, msg.ReplyToID, msg.EncryptionMode, msg.ModelType,
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.InsertMessage(setupMockContext(mock), msg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindMessage(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	sender := "user_1"
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs("msg_1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "conversation_id", "sender_id", "anonymous_sender_id", "content",
			"original_language", "message_type", "reply_to_id", "encryption_mode", "model_type", "created_at",
		}).AddRow("msg_1", "conv_1", &sender, (*string)(nil), "Hello",
			"en", "text", (*string)(nil), domain.EncryptionServer, domain.ModelTypeMedium, now))

	msg, err := s.FindMessage(setupMockContext(mock), "msg_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SenderID == nil || *msg.SenderID != "user_1" {
		t.Errorf("unexpected sender: %v", msg.SenderID)
	}
	if msg.EncryptionMode != domain.EncryptionServer {
		t.Errorf("unexpected mode: %s", msg.EncryptionMode)
	}
	expectationsMet(t, mock)
}

func TestFindMessageNotFound(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs("msg_missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := s.FindMessage(setupMockContext(mock), "msg_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpsertTranslation(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	tr := &domain.Translation{
		MessageID:         "msg_1",
		TargetLanguage:    "fr",
		TranslatedContent: "Bonjour",
		TranslationModel:  "medium",
		ConfidenceScore:   0.93,
		CreatedAt:         time.Now(),
	}

	mock.ExpectExec("DELETE FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO message_translations").
		WithArgs(pgxmock.AnyArg(), tr.MessageID, tr.TargetLanguage, tr.TranslatedContent,
			tr.TranslationModel, tr.ConfidenceScore, tr.IsEncrypted,
			tr.KeyID, tr.IV, tr.AuthTag, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tr_existing"))

	if err := s.UpsertTranslation(setupMockContext(mock), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ID != "tr_existing" {
		t.Errorf("expected surviving row id, got %s", tr.ID)
	}
	expectationsMet(t, mock)
}

func TestUpsertTranslationCleansLegacyDuplicates(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	tr := &domain.Translation{MessageID: "msg_1", TargetLanguage: "fr", CreatedAt: time.Now()}

	mock.ExpectExec("DELETE FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectQuery("INSERT INTO message_translations").
		WithArgs(pgxmock.AnyArg(), tr.MessageID, tr.TargetLanguage, tr.TranslatedContent,
			tr.TranslationModel, tr.ConfidenceScore, tr.IsEncrypted,
			tr.KeyID, tr.IV, tr.AuthTag, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tr_1"))

	if err := s.UpsertTranslation(setupMockContext(mock), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpsertTranslationFallbackCreates(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	tr := &domain.Translation{MessageID: "msg_1", TargetLanguage: "fr", CreatedAt: time.Now()}

	mock.ExpectExec("DELETE FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO message_translations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "42P10"})
	mock.ExpectQuery("SELECT id FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO message_translations").
		WithArgs(pgxmock.AnyArg(), tr.MessageID, tr.TargetLanguage, tr.TranslatedContent,
			tr.TranslationModel, tr.ConfidenceScore, tr.IsEncrypted,
			tr.KeyID, tr.IV, tr.AuthTag, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.UpsertTranslation(setupMockContext(mock), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpsertTranslationFallbackUpdates(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	tr := &domain.Translation{MessageID: "msg_1", TargetLanguage: "fr", TranslatedContent: "Bonjour", CreatedAt: time.Now()}

	mock.ExpectExec("DELETE FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO message_translations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "42P10"})
	mock.ExpectQuery("SELECT id FROM message_translations").
		WithArgs("msg_1", "fr").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tr_old"))
	mock.ExpectExec("UPDATE message_translations").
		WithArgs("tr_old", tr.TranslatedContent, tr.TranslationModel, tr.ConfidenceScore,
			tr.IsEncrypted, tr.KeyID, tr.IV, tr.AuthTag, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.UpsertTranslation(setupMockContext(mock), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ID != "tr_old" {
		t.Errorf("expected updated row id, got %s", tr.ID)
	}
	expectationsMet(t, mock)
}

func TestDeleteTranslations(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectExec("DELETE FROM message_translations").
		WithArgs("msg_1", []string{"fr", "de"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	if err := s.DeleteTranslations(setupMockContext(mock), "msg_1", []string{"fr", "de"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDeleteTranslationsEmptyIsNoop(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	if err := s.DeleteTranslations(setupMockContext(mock), "msg_1", nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindTranslation(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	keyID := "key_1"
	iv := "aXY="
	tag := "dGFn"
	created := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "message_id", "target_language", "translated_content", "translation_model",
		"confidence_score", "is_encrypted", "key_id", "iv", "auth_tag", "created_at",
	}).AddRow("tr_1", "msg_1", "fr", "Y2lwaGVy", "medium", 0.9, true, &keyID, &iv, &tag, created)

	mock.ExpectQuery("SELECT id, message_id, target_language").
		WithArgs("msg_1", "fr").
		WillReturnRows(rows)

	tr, err := s.FindTranslation(setupMockContext(mock), "msg_1", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ID != "tr_1" || !tr.IsEncrypted || tr.KeyID == nil || *tr.KeyID != "key_1" {
		t.Errorf("unexpected translation: %+v", tr)
	}
	expectationsMet(t, mock)
}

func TestFindTranslationNotFound(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectQuery("SELECT id, message_id, target_language").
		WithArgs("msg_1", "sv").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindTranslation(setupMockContext(mock), "msg_1", "sv")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestIncrementUserTranslationsUsed(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectExec("UPDATE users SET translations_used").
		WithArgs("user_anon").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := s.IncrementUserTranslationsUsed(setupMockContext(mock), "user_anon"); err != nil {
		t.Errorf("expected zero-row update to pass, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindAttachment(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	now := time.Now()
	transcription := []byte(`{"text":"hello there","language":"en","confidence":0.97,"source":"whisper","duration_ms":4200}`)
	translations := []byte(`{"fr":{"target_language":"fr","translated_text":"bonjour","url":"/api/v1/attachments/file/translated/att_1_fr.mp3","format":"mp3","created_at":"2025-03-14T09:26:53Z"}}`)

	mock.ExpectQuery("SELECT (.+) FROM attachments").
		WithArgs("att_1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "message_id", "conversation_id", "file_name", "file_url", "mime_type",
			"duration_ms", "transcription", "translations", "created_at", "updated_at",
		}).AddRow("att_1", "msg_1", "conv_1", "voice.ogg", "/uploads/attachments/voice.ogg", "audio/ogg",
			4200, transcription, translations, now, now))

	att, err := s.FindAttachment(setupMockContext(mock), "att_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.Transcription == nil || att.Transcription.Text != "hello there" {
		t.Errorf("unexpected transcription: %+v", att.Transcription)
	}
	if rec, ok := att.Translations["fr"]; !ok || rec.TranslatedText != "bonjour" {
		t.Errorf("unexpected translations: %+v", att.Translations)
	}
	expectationsMet(t, mock)
}

func TestFindAttachmentWithoutTranscription(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM attachments").
		WithArgs("att_2").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "message_id", "conversation_id", "file_name", "file_url", "mime_type",
			"duration_ms", "transcription", "translations", "created_at", "updated_at",
		}).AddRow("att_2", "msg_2", "conv_1", "voice.ogg", "/uploads/attachments/voice.ogg", "audio/ogg",
			0, []byte(nil), []byte(`{}`), now, now))

	att, err := s.FindAttachment(setupMockContext(mock), "att_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.Transcription != nil {
		t.Errorf("expected nil transcription, got %+v", att.Transcription)
	}
	if att.Translations == nil || len(att.Translations) != 0 {
		t.Errorf("expected empty translations map, got %+v", att.Translations)
	}
	expectationsMet(t, mock)
}

func TestUpdateAttachmentTranscription(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	rec := &domain.TranscriptionRecord{Text: "hello", Language: "en", Confidence: 0.9, Source: domain.TranscriptionSourceWhisper}

	mock.ExpectExec("UPDATE attachments SET transcription").
		WithArgs("att_1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.UpdateAttachmentTranscription(setupMockContext(mock), "att_1", rec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateAttachmentTranscriptionNotFound(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectExec("UPDATE attachments SET transcription").
		WithArgs("att_missing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAttachmentTranscription(setupMockContext(mock), "att_missing", &domain.TranscriptionRecord{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateAttachmentTranslationsMerges(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectExec(`UPDATE attachments\s+SET translations = COALESCE`).
		WithArgs("att_1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	entries := map[string]domain.TranslatedAudioRecord{
		"fr": {TargetLanguage: "fr", TranslatedText: "bonjour", Format: "mp3"},
	}
	if err := s.UpdateAttachmentTranslations(setupMockContext(mock), "att_1", entries); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestLoadVoiceProfileNotFound(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectQuery("SELECT (.+) FROM voice_profiles").
		WithArgs("user_new").
		WillReturnError(pgx.ErrNoRows)

	if _, err := s.LoadVoiceProfile(setupMockContext(mock), "user_new"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpsertVoiceProfileBumpsVersion(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	profile := &domain.VoiceProfile{
		UserID:       "user_1",
		ProfileID:    "vp_1",
		Embedding:    []byte{1, 2, 3},
		QualityScore: 0.8,
		AudioCount:   4,
	}

	mock.ExpectQuery("INSERT INTO voice_profiles").
		WithArgs(profile.UserID, profile.ProfileID, profile.Embedding, profile.QualityScore,
			profile.AudioCount, profile.TotalDurationMs, profile.Fingerprint,
			pgxmock.AnyArg(), profile.ChatterboxConditionals,
			profile.ReferenceAudioID, profile.ReferenceAudioURL).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(3))

	if err := s.UpsertVoiceProfile(setupMockContext(mock), profile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Version != 3 {
		t.Errorf("expected version 3 from store, got %d", profile.Version)
	}
	expectationsMet(t, mock)
}

func TestLoadConversationEncryptionKey(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	material := make([]byte, 32)
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM conversation_keys").
		WithArgs("conv_1").
		WillReturnRows(pgxmock.NewRows([]string{"key_id", "conversation_id", "purpose", "key_material", "created_at"}).
			AddRow("key_1", "conv_1", "conversation", material, now))

	key, err := s.LoadConversationEncryptionKey(setupMockContext(mock), "conv_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.KeyID != "key_1" || len(key.Key) != 32 {
		t.Errorf("unexpected key: %+v", key)
	}
	expectationsMet(t, mock)
}

func TestLoadConversationEncryptionKeyNotFound(t *testing.T) {
	mock := newMock(t)
	s := New(nil)

	mock.ExpectQuery("SELECT (.+) FROM conversation_keys").
		WithArgs("conv_plain").
		WillReturnError(pgx.ErrNoRows)

	if _, err := s.LoadConversationEncryptionKey(setupMockContext(mock), "conv_plain"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}
