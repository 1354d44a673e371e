// Package encryption encrypts translations at rest with per-conversation
// AES-256-GCM keys. Key material lives in the store; the helper caches it
// per process so a burst of completions for one conversation costs a single
// key read.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/meshychat/meshy/internal/domain"
)

const keySize = 32

// Store is the persistence surface the helper reads from.
type Store interface {
	FindMessage(ctx context.Context, id string) (*domain.Message, error)
	LoadConversationEncryptionKey(ctx context.Context, conversationID string) (*domain.ConversationKey, error)
}

// Encrypted carries one sealed translation. All fields are base64; the GCM
// tag is stored apart from the ciphertext.
type Encrypted struct {
	Content string
	KeyID   string
	IV      string
	AuthTag string
}

// Helper resolves conversation keys and seals/opens translation content.
type Helper struct {
	store Store

	mu   sync.RWMutex
	keys map[string]*domain.ConversationKey
}

func NewHelper(store Store) *Helper {
	return &Helper{
		store: store,
		keys:  make(map[string]*domain.ConversationKey),
	}
}

// ConversationKey resolves the symmetric key for a conversation, reading
// through to the store on first use. Returns domain.ErrKeyUnavailable when
// the conversation has no key.
func (h *Helper) ConversationKey(ctx context.Context, conversationID string) (*domain.ConversationKey, error) {
	h.mu.RLock()
	key, ok := h.keys[conversationID]
	h.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := h.store.LoadConversationEncryptionKey(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrKeyUnavailable
		}
		return nil, fmt.Errorf("load conversation key: %w", err)
	}
	if len(key.Key) != keySize {
		return nil, fmt.Errorf("conversation key %s: expected %d bytes, got %d", key.KeyID, keySize, len(key.Key))
	}

	h.mu.Lock()
	h.keys[conversationID] = key
	h.mu.Unlock()
	return key, nil
}

// EncryptTranslation seals plaintext under the conversation key with a fresh
// 96-bit IV.
func (h *Helper) EncryptTranslation(ctx context.Context, plaintext, conversationID string) (*Encrypted, error) {
	key, err := h.ConversationKey(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key.Key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagOffset := len(sealed) - gcm.Overhead()

	return &Encrypted{
		Content: base64.StdEncoding.EncodeToString(sealed[:tagOffset]),
		KeyID:   key.KeyID,
		IV:      base64.StdEncoding.EncodeToString(iv),
		AuthTag: base64.StdEncoding.EncodeToString(sealed[tagOffset:]),
	}, nil
}

// DecryptTranslation opens a sealed translation. Any tampering with the
// ciphertext, IV or tag yields domain.ErrDecryptFailed; callers must not
// fall back to returning the ciphertext.
func (h *Helper) DecryptTranslation(ctx context.Context, conversationID, content, keyID, iv, authTag string) (string, error) {
	key, err := h.ConversationKey(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if key.KeyID != keyID {
		return "", fmt.Errorf("key %s no longer active: %w", keyID, domain.ErrDecryptFailed)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(authTag)
	if err != nil {
		return "", fmt.Errorf("decode auth tag: %w", err)
	}

	gcm, err := newGCM(key.Key)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("iv length %d: %w", len(nonce), domain.ErrDecryptFailed)
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", domain.ErrDecryptFailed
	}
	return string(plaintext), nil
}

// ShouldEncryptTranslation reports whether translations of a message are
// stored encrypted, together with the conversation the key belongs to. True
// for server and hybrid modes; none and e2ee content is never sealed here.
func (h *Helper) ShouldEncryptTranslation(ctx context.Context, messageID string) (bool, string, error) {
	msg, err := h.store.FindMessage(ctx, messageID)
	if err != nil {
		return false, "", fmt.Errorf("find message: %w", err)
	}
	return msg.EncryptionMode.ServerReadable(), msg.ConversationID, nil
}

// InvalidateKey drops a cached key, forcing the next use to re-read the
// store. Called after key rotation.
func (h *Helper) InvalidateKey(conversationID string) {
	h.mu.Lock()
	delete(h.keys, conversationID)
	h.mu.Unlock()
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
