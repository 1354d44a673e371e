package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/ports"
	"github.com/meshychat/meshy/internal/protocol"
	"github.com/meshychat/meshy/internal/stats"
)

// mockStore is an in-memory ports.Store with call counters for the
// interactions the tests assert on.
type mockStore struct {
	mu sync.Mutex

	conversations map[string]*domain.Conversation
	messages      map[string]*domain.Message
	translations  map[string]*domain.Translation
	attachments   map[string]*domain.Attachment
	profiles      map[string]*domain.VoiceProfile
	keys          map[string]*domain.ConversationKey
	languages     map[string][]string
	usage         map[string]int

	languageCalls        int
	findTranslationCalls int
	upsertCalls          int
	deletedLanguages     map[string][]string
}

func newMockStore() *mockStore {
	return &mockStore{
		conversations:    make(map[string]*domain.Conversation),
		messages:         make(map[string]*domain.Message),
		translations:     make(map[string]*domain.Translation),
		attachments:      make(map[string]*domain.Attachment),
		profiles:         make(map[string]*domain.VoiceProfile),
		keys:             make(map[string]*domain.ConversationKey),
		languages:        make(map[string][]string),
		usage:            make(map[string]int),
		deletedLanguages: make(map[string][]string),
	}
}

func (s *mockStore) CreateConversationIfAbsent(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; ok {
		return nil
	}
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *mockStore) InsertMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *mockStore) TouchConversationLastMessageAt(_ context.Context, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[conversationID]; ok {
		conv.LastMessageAt = &at
	}
	return nil
}

func (s *mockStore) FindMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *mockStore) GetConversationLanguages(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.languageCalls++
	return append([]string(nil), s.languages[conversationID]...), nil
}

func (s *mockStore) UpsertTranslation(_ context.Context, tr *domain.Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	cp := *tr
	s.translations[tr.MessageID+":"+tr.TargetLanguage] = &cp
	return nil
}

func (s *mockStore) FindTranslation(_ context.Context, messageID, targetLanguage string) (*domain.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findTranslationCalls++
	tr, ok := s.translations[messageID+":"+targetLanguage]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *mockStore) DeleteTranslations(_ context.Context, messageID string, languages []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedLanguages[messageID] = append(s.deletedLanguages[messageID], languages...)
	for _, lang := range languages {
		delete(s.translations, messageID+":"+lang)
	}
	return nil
}

func (s *mockStore) IncrementUserTranslationsUsed(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[userID]++
	return nil
}

func (s *mockStore) FindAttachment(_ context.Context, id string) (*domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *att
	return &cp, nil
}

func (s *mockStore) UpdateAttachmentTranscription(_ context.Context, attachmentID string, rec *domain.TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[attachmentID]
	if !ok {
		return domain.ErrNotFound
	}
	att.Transcription = rec
	return nil
}

func (s *mockStore) UpdateAttachmentTranslations(_ context.Context, attachmentID string, translations map[string]domain.TranslatedAudioRecord) error {
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

func (s *mockStore) LoadVoiceProfile(_ context.Context, userID string) (*domain.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *vp
	return &cp, nil
}

func (s *mockStore) UpsertVoiceProfile(_ context.Context, profile *domain.VoiceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *mockStore) LoadConversationEncryptionKey(_ context.Context, conversationID string) (*domain.ConversationKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *key
	return &cp, nil
}

func (s *mockStore) message(t *testing.T, id string) *domain.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		t.Fatalf("message %s not in store", id)
	}
	cp := *msg
	return &cp
}

func (s *mockStore) translation(t *testing.T, messageID, lang string) *domain.Translation {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.translations[messageID+":"+lang]
	if !ok {
		t.Fatalf("translation %s/%s not in store", messageID, lang)
	}
	cp := *tr
	return &cp
}

func (s *mockStore) attachment(t *testing.T, id string) *domain.Attachment {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[id]
	if !ok {
		t.Fatalf("attachment %s not in store", id)
	}
	cp := *att
	return &cp
}

func (s *mockStore) upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

func (s *mockStore) usageOf(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[userID]
}

// busRequest records one dispatched request, regardless of kind.
type busRequest struct {
	taskID        string
	translation   *protocol.TranslationRequest
	audio         *protocol.AudioProcessRequest
	transcription *protocol.TranscriptionRequest
}

type mockBus struct {
	mu          sync.Mutex
	listener    ports.BusListener
	dispatchErr error
	seq         int

	requests chan busRequest
}

func newMockBus() *mockBus {
	return &mockBus{requests: make(chan busRequest, 16)}
}

func (b *mockBus) nextTask() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dispatchErr != nil {
		return "", b.dispatchErr
	}
	b.seq++
	return fmt.Sprintf("task_%03d", b.seq), nil
}

func (b *mockBus) RequestTranslation(_ context.Context, req *protocol.TranslationRequest) (string, error) {
	taskID, err := b.nextTask()
	if err != nil {
		return "", err
	}
	b.requests <- busRequest{taskID: taskID, translation: req}
	return taskID, nil
}

func (b *mockBus) RequestAudioJob(_ context.Context, req *protocol.AudioProcessRequest) (string, error) {
	taskID, err := b.nextTask()
	if err != nil {
		return "", err
	}
	b.requests <- busRequest{taskID: taskID, audio: req}
	return taskID, nil
}

func (b *mockBus) RequestTranscription(_ context.Context, req *protocol.TranscriptionRequest) (string, error) {
	taskID, err := b.nextTask()
	if err != nil {
		return "", err
	}
	b.requests <- busRequest{taskID: taskID, transcription: req}
	return taskID, nil
}

func (b *mockBus) SetListener(l ports.BusListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

func waitRequest(t *testing.T, bus *mockBus) busRequest {
	t.Helper()
	select {
	case req := <-bus.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a bus request")
		return busRequest{}
	}
}

func expectNoRequest(t *testing.T, bus *mockBus) {
	t.Helper()
	select {
	case req := <-bus.requests:
		t.Fatalf("unexpected bus request: %+v", req)
	case <-time.After(150 * time.Millisecond):
	}
}

// emitted records one client event by emitter method name.
type emitted struct {
	name string
	ev   interface{}
}

type mockEmitter struct {
	events chan emitted
}

func newMockEmitter() *mockEmitter {
	return &mockEmitter{events: make(chan emitted, 32)}
}

func (e *mockEmitter) EmitTranslationReady(ev *protocol.TranslationReadyEvent) {
	e.events <- emitted{name: "translationReady", ev: ev}
}

func (e *mockEmitter) EmitTranscriptionReady(ev *protocol.TranscriptionReadyEvent) {
	e.events <- emitted{name: "transcriptionReady", ev: ev}
}

func (e *mockEmitter) EmitAudioTranslationReady(ev *protocol.AudioTranslationReadyEvent) {
	e.events <- emitted{name: "audioTranslationReady", ev: ev}
}

func (e *mockEmitter) EmitAudioTranslationsProgressive(ev *protocol.AudioTranslationReadyEvent) {
	e.events <- emitted{name: "audioTranslationsProgressive", ev: ev}
}

func (e *mockEmitter) EmitAudioTranslationsCompleted(ev *protocol.AudioTranslationReadyEvent) {
	e.events <- emitted{name: "audioTranslationsCompleted", ev: ev}
}

func (e *mockEmitter) EmitAudioTranslationError(ev *protocol.AudioTranslationErrorEvent) {
	e.events <- emitted{name: "audioTranslationError", ev: ev}
}

func (e *mockEmitter) EmitTranscriptionError(ev *protocol.TranscriptionErrorEvent) {
	e.events <- emitted{name: "transcriptionError", ev: ev}
}

func (e *mockEmitter) EmitVoiceJobCompleted(ev *protocol.VoiceJobCompletedEvent) {
	e.events <- emitted{name: "voiceJobCompleted", ev: ev}
}

func (e *mockEmitter) EmitVoiceJobFailed(ev *protocol.VoiceJobFailedEvent) {
	e.events <- emitted{name: "voiceJobFailed", ev: ev}
}

func waitEmitted(t *testing.T, e *mockEmitter, name string) emitted {
	t.Helper()
	select {
	case got := <-e.events:
		if got.name != name {
			t.Fatalf("emitted %s, want %s", got.name, name)
		}
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", name)
		return emitted{}
	}
}

func expectNoEvent(t *testing.T, e *mockEmitter) {
	t.Helper()
	select {
	case got := <-e.events:
		t.Fatalf("unexpected %s event", got.name)
	case <-time.After(150 * time.Millisecond):
	}
}

type mockConsent struct {
	status *domain.ConsentStatus
	err    error
}

func (c *mockConsent) GetConsentStatus(context.Context, string) (*domain.ConsentStatus, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.status, nil
}

func allConsent() *domain.ConsentStatus {
	return &domain.ConsentStatus{
		CanTranscribeAudio:         true,
		CanTranslateAudio:          true,
		CanGenerateTranslatedAudio: true,
		CanUseVoiceCloning:         true,
		HasVoiceDataConsent:        true,
	}
}

type testEnv struct {
	o       *Orchestrator
	store   *mockStore
	bus     *mockBus
	emitter *mockEmitter
	consent *mockConsent
	stats   *stats.Stats
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	if opts.UploadsRoot == "" {
		opts.UploadsRoot = t.TempDir()
	}
	env := &testEnv{
		store:   newMockStore(),
		bus:     newMockBus(),
		emitter: newMockEmitter(),
		consent: &mockConsent{status: allConsent()},
		stats:   stats.New(),
	}
	env.o = New(env.store, env.bus, env.emitter, env.consent, env.stats, opts)
	return env
}

func strPtr(s string) *string { return &s }

// waitFor polls cond until it holds or the deadline passes. Used where the
// asserted effect happens on the detached dispatch goroutine.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRegistersAsBusListener(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.bus.mu.Lock()
	listener := env.bus.listener
	env.bus.mu.Unlock()

	if listener != ports.BusListener(env.o) {
		t.Fatal("orchestrator did not register itself as the bus listener")
	}
}

func TestConversationForTaskPrefersPendingContext(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	env.store.mu.Lock()
	env.store.messages["msg_1"] = &domain.Message{ID: "msg_1", ConversationID: "conv_from_store"}
	env.store.mu.Unlock()

	env.o.pending.Put(ctx, "task_1", domain.PendingTask{ConversationID: "conv_from_task"})

	if got := env.o.conversationForTask(ctx, "task_1", "msg_1"); got != "conv_from_task" {
		t.Fatalf("conversation = %s, want conv_from_task", got)
	}
	if got := env.o.conversationForTask(ctx, "task_unknown", "msg_1"); got != "conv_from_store" {
		t.Fatalf("conversation = %s, want conv_from_store", got)
	}
	if got := env.o.conversationForTask(ctx, "task_unknown", "msg_unknown"); got != "" {
		t.Fatalf("conversation = %s, want empty", got)
	}
}
