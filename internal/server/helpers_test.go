package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meshychat/meshy/internal/config"
	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/orchestrator"
	"github.com/meshychat/meshy/internal/ports"
	"github.com/meshychat/meshy/internal/protocol"
	"github.com/meshychat/meshy/internal/stats"
)

// testStore is a map-backed ports.Store. Seeding happens through the maps
// directly, under mu.
type testStore struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	messages      map[string]*domain.Message
	translations  map[string]*domain.Translation
	attachments   map[string]*domain.Attachment
	profiles      map[string]*domain.VoiceProfile
	keys          map[string]*domain.ConversationKey
	languages     map[string][]string
}

var _ ports.Store = (*testStore)(nil)

func newTestStore() *testStore {
	return &testStore{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string]*domain.Message),
		translations:  make(map[string]*domain.Translation),
		attachments:   make(map[string]*domain.Attachment),
		profiles:      make(map[string]*domain.VoiceProfile),
		keys:          make(map[string]*domain.ConversationKey),
		languages:     make(map[string][]string),
	}
}

func (s *testStore) CreateConversationIfAbsent(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		cp := *conv
		s.conversations[conv.ID] = &cp
	}
	return nil
}

func (s *testStore) InsertMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *testStore) TouchConversationLastMessageAt(_ context.Context, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[conversationID]; ok {
		conv.LastMessageAt = &at
	}
	return nil
}

func (s *testStore) FindMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *testStore) GetConversationLanguages(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.languages[conversationID]...), nil
}

func (s *testStore) UpsertTranslation(_ context.Context, tr *domain.Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tr
	s.translations[tr.MessageID+":"+tr.TargetLanguage] = &cp
	return nil
}

func (s *testStore) FindTranslation(_ context.Context, messageID, targetLanguage string) (*domain.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.translations[messageID+":"+targetLanguage]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *testStore) DeleteTranslations(_ context.Context, messageID string, languages []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lang := range languages {
		delete(s.translations, messageID+":"+lang)
	}
	return nil
}

func (s *testStore) IncrementUserTranslationsUsed(context.Context, string) error { return nil }

func (s *testStore) FindAttachment(_ context.Context, id string) (*domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *att
	return &cp, nil
}

func (s *testStore) UpdateAttachmentTranscription(_ context.Context, attachmentID string, rec *domain.TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[attachmentID]
	if !ok {
		return domain.ErrNotFound
	}
	att.Transcription = rec
	return nil
}

func (s *testStore) UpdateAttachmentTranslations(_ context.Context, attachmentID string, translations map[string]domain.TranslatedAudioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[attachmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if att.Translations == nil {
		att.Translations = make(map[string]domain.TranslatedAudioRecord)
	}
	for lang, rec := range translations {
		att.Translations[lang] = rec
	}
	return nil
}

func (s *testStore) LoadVoiceProfile(_ context.Context, userID string) (*domain.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *vp
	return &cp, nil
}

func (s *testStore) UpsertVoiceProfile(_ context.Context, profile *domain.VoiceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *testStore) LoadConversationEncryptionKey(_ context.Context, conversationID string) (*domain.ConversationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *key
	return &cp, nil
}

// dispatched records one worker request of any kind.
type dispatched struct {
	taskID        string
	translation   *protocol.TranslationRequest
	audio         *protocol.AudioProcessRequest
	transcription *protocol.TranscriptionRequest
}

type testBus struct {
	mu       sync.Mutex
	seq      int
	requests chan dispatched
}

var _ ports.Bus = (*testBus)(nil)

func newTestBus() *testBus {
	return &testBus{requests: make(chan dispatched, 16)}
}

func (b *testBus) nextTask() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return fmt.Sprintf("task_%03d", b.seq)
}

func (b *testBus) RequestTranslation(_ context.Context, req *protocol.TranslationRequest) (string, error) {
	taskID := b.nextTask()
	b.requests <- dispatched{taskID: taskID, translation: req}
	return taskID, nil
}

func (b *testBus) RequestAudioJob(_ context.Context, req *protocol.AudioProcessRequest) (string, error) {
	taskID := b.nextTask()
	b.requests <- dispatched{taskID: taskID, audio: req}
	return taskID, nil
}

func (b *testBus) RequestTranscription(_ context.Context, req *protocol.TranscriptionRequest) (string, error) {
	taskID := b.nextTask()
	b.requests <- dispatched{taskID: taskID, transcription: req}
	return taskID, nil
}

func (b *testBus) SetListener(ports.BusListener) {}

func waitDispatched(t *testing.T, bus *testBus) dispatched {
	t.Helper()
	select {
	case req := <-bus.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a bus request")
		return dispatched{}
	}
}

type testConsent struct {
	mu     sync.Mutex
	status *domain.ConsentStatus
}

func (c *testConsent) GetConsentStatus(context.Context, string) (*domain.ConsentStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *c.status
	return &cp, nil
}

func (c *testConsent) deny() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = &domain.ConsentStatus{}
}

type serverOptions struct {
	allowedOrigins  []string
	denyEmptyOrigin bool
	dbPing          func(context.Context) error
}

type serverEnv struct {
	ts      *httptest.Server
	store   *testStore
	bus     *testBus
	hub     *Hub
	consent *testConsent
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	uploads string
}

// newServerEnv wires a full server against in-memory fakes, with the hub as
// the real emitter, and serves it over httptest.
func newServerEnv(t *testing.T, opts serverOptions) *serverEnv {
	t.Helper()

	uploads := t.TempDir()
	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = opts.allowedOrigins
	cfg.Server.AllowEmptyOrigin = !opts.denyEmptyOrigin
	cfg.Files.UploadsRoot = uploads

	env := &serverEnv{
		store:   newTestStore(),
		bus:     newTestBus(),
		hub:     NewHub(),
		consent: &testConsent{status: &domain.ConsentStatus{
			CanTranscribeAudio:         true,
			CanTranslateAudio:          true,
			CanGenerateTranslatedAudio: true,
			CanUseVoiceCloning:         true,
			HasVoiceDataConsent:        true,
		}},
		cfg:     cfg,
		uploads: uploads,
	}

	st := stats.New()
	env.orch = orchestrator.New(env.store, env.bus, env.hub, env.consent, st, orchestrator.Options{
		UploadsRoot: uploads,
		// Kept short so fallback paths resolve quickly.
		SyncTimeout: 150 * time.Millisecond,
	})

	srv := New(cfg, env.orch, env.hub, nil, st, opts.dbPing)
	env.ts = httptest.NewServer(srv.Router())
	t.Cleanup(env.ts.Close)
	return env
}

// seedAudioAttachment stores an audio attachment with its file on disk and
// returns the attachment.
func (env *serverEnv) seedAudioAttachment(t *testing.T, attachmentID, messageID, conversationID string) *domain.Attachment {
	t.Helper()

	dir := filepath.Join(env.uploads, "attachments", "voice")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	name := attachmentID + ".ogg"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("OggS fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	att := &domain.Attachment{
		ID:             attachmentID,
		MessageID:      messageID,
		ConversationID: conversationID,
		FileName:       name,
		FileURL:        "/uploads/attachments/voice/" + name,
		MimeType:       "audio/ogg",
		DurationMs:     4200,
		CreatedAt:      time.Now().UTC(),
	}
	env.store.mu.Lock()
	env.store.attachments[att.ID] = att
	env.store.mu.Unlock()
	return att
}

func (env *serverEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(env.ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (env *serverEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(env.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func strPtr(s string) *string { return &s }
