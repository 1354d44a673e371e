package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	got := New(PrefixMessage)
	assert.True(t, strings.HasPrefix(got, "msg_"), "expected msg_ prefix, got %q", got)
	assert.Len(t, got, len("msg_")+DefaultLength)
	assert.NotEqual(t, got, New(PrefixMessage), "two generated ids collided")
}

func TestConversationIdentifier(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		title string
		want  string
	}{
		{"Team Standup", "mshy_team-standup-20250314092653"},
		{"  Déjà vu!! 2024  ", "mshy_d-j-vu-2024-20250314092653"},
		{"---", "mshy_conversation-20250314092653"},
		{"", "mshy_conversation-20250314092653"},
		{"already-slugged", "mshy_already-slugged-20250314092653"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConversationIdentifier(tt.title, at), "title %q", tt.title)
	}
}

func TestConversationIdentifierFormat(t *testing.T) {
	got := ConversationIdentifier("Weekend Plans (FR/EN)", time.Now())
	assert.Regexp(t, `^mshy_[a-z0-9-]+-\d{14}$`, got)
}
