// Package id provides ID generation helpers used across the service.
package id

import (
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixTranslation  = "tr"
	PrefixAttachment   = "att"
	PrefixTask         = "task"
	PrefixVoiceProfile = "vp"
	PrefixKey          = "key"
	PrefixEnvelope     = "env"
	PrefixWorker       = "wrk"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewWithLength(prefix string, length int) string {
	id, err := nanoid.New(length)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewConversation() string { return New(PrefixConversation) }
func NewMessage() string      { return New(PrefixMessage) }
func NewTranslation() string  { return New(PrefixTranslation) }
func NewAttachment() string   { return New(PrefixAttachment) }
func NewTask() string         { return New(PrefixTask) }
func NewVoiceProfile() string { return New(PrefixVoiceProfile) }
func NewEnvelope() string     { return New(PrefixEnvelope) }
func NewWorker() string       { return New(PrefixWorker) }

// ConversationIdentifier builds the human-readable conversation identifier
// mshy_<slug>-<YYYYMMDDHHMMSS>. The slug is the title lowercased with every
// run of non-alphanumeric characters collapsed to a single dash.
func ConversationIdentifier(title string, now time.Time) string {
	slug := slugify(title)
	if slug == "" {
		slug = "conversation"
	}
	return "mshy_" + slug + "-" + now.Format("20060102150405")
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
