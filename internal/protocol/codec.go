package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

type messageFactory func() interface{}

var messageTypeRegistry = map[MessageType]messageFactory{
	TypeTranslationRequest:           func() interface{} { return &TranslationRequest{} },
	TypeAudioProcessRequest:          func() interface{} { return &AudioProcessRequest{} },
	TypeTranscriptionRequest:         func() interface{} { return &TranscriptionRequest{} },
	TypeTranslationCompleted:         func() interface{} { return &TranslationCompleted{} },
	TypeTranslationError:             func() interface{} { return &TranslationError{} },
	TypeTranscriptionReady:           func() interface{} { return &TranscriptionReady{} },
	TypeAudioTranslationReady:        func() interface{} { return &AudioTranslationEvent{} },
	TypeAudioTranslationsProgressive: func() interface{} { return &AudioTranslationEvent{} },
	TypeAudioTranslationsCompleted:   func() interface{} { return &AudioTranslationEvent{} },
	TypeAudioProcessCompleted:        func() interface{} { return &AudioProcessCompleted{} },
	TypeAudioProcessError:            func() interface{} { return &AudioProcessError{} },
	TypeTranscriptionCompleted:       func() interface{} { return &TranscriptionCompleted{} },
	TypeTranscriptionError:           func() interface{} { return &TranscriptionOnlyError{} },
	TypeVoiceTranslationCompleted:    func() interface{} { return &VoiceTranslationCompleted{} },
	TypeVoiceTranslationFailed:       func() interface{} { return &VoiceTranslationFailed{} },

	TypeSubscribe:    func() interface{} { return &Subscribe{} },
	TypeUnsubscribe:  func() interface{} { return &Unsubscribe{} },
	TypeSubscribeAck: func() interface{} { return &SubscribeAck{} },

	TypeTranslationReadyEvent:             func() interface{} { return &TranslationReadyEvent{} },
	TypeTranscriptionReadyEvent:           func() interface{} { return &TranscriptionReadyEvent{} },
	TypeAudioTranslationReadyEvent:        func() interface{} { return &AudioTranslationReadyEvent{} },
	TypeAudioTranslationsProgressiveEvent: func() interface{} { return &AudioTranslationReadyEvent{} },
	TypeAudioTranslationsCompletedEvent:   func() interface{} { return &AudioTranslationReadyEvent{} },
	TypeAudioTranslationErrorEvent:        func() interface{} { return &AudioTranslationErrorEvent{} },
	TypeTranscriptionErrorEvent:           func() interface{} { return &TranscriptionErrorEvent{} },
	TypeVoiceJobCompletedEvent:            func() interface{} { return &VoiceJobCompletedEvent{} },
	TypeVoiceJobFailedEvent:               func() interface{} { return &VoiceJobFailedEvent{} },
}

func (c *Codec) Encode(envelope *Envelope) ([]byte, error) {
	if envelope == nil {
		return nil, fmt.Errorf("envelope is nil")
	}

	if _, ok := messageTypeRegistry[envelope.Type]; !ok {
		return nil, fmt.Errorf("invalid message type: %d", envelope.Type)
	}

	if envelope.Body == nil {
		return nil, fmt.Errorf("envelope body is nil")
	}

	data, err := msgpack.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return data, nil
}

func (c *Codec) Decode(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	var raw struct {
		ID             string                 `msgpack:"id"`
		TaskID         string                 `msgpack:"task_id,omitempty"`
		ConversationID string                 `msgpack:"conversation_id,omitempty"`
		Type           MessageType            `msgpack:"type"`
		Meta           map[string]interface{} `msgpack:"meta,omitempty"`
		Body           msgpack.RawMessage     `msgpack:"body"`
	}

	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	factory, ok := messageTypeRegistry[raw.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %d", raw.Type)
	}

	body := factory()
	if err := msgpack.Unmarshal(raw.Body, body); err != nil {
		return nil, fmt.Errorf("unmarshal %s body: %w", raw.Type, err)
	}

	return &Envelope{
		ID:             raw.ID,
		TaskID:         raw.TaskID,
		ConversationID: raw.ConversationID,
		Type:           raw.Type,
		Meta:           raw.Meta,
		Body:           body,
	}, nil
}
