package domain

import "errors"

var (
	ErrNotFound        = errors.New("resource not found")
	ErrConsentRequired = errors.New("transcription consent not granted")
	ErrNotAudio        = errors.New("attachment is not an audio file")
	ErrKeyUnavailable  = errors.New("conversation encryption key unavailable")
	ErrDecryptFailed   = errors.New("translation decryption failed")
	ErrNoWorkers       = errors.New("no workers connected")
	ErrInvalidSender   = errors.New("exactly one of sender_id or anonymous_sender_id must be set")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
