package protocol

// Envelope wraps all protocol messages with common metadata for routing.
// Envelopes are serialized using MessagePack and transmitted as binary
// WebSocket frames.
type Envelope struct {
	// ID uniquely identifies this envelope. Format: env_{nanoid}.
	ID string `msgpack:"id" json:"id"`

	// TaskID correlates worker requests with their asynchronous completions.
	// Empty on client-surface messages that carry no task context.
	TaskID string `msgpack:"task_id,omitempty" json:"task_id,omitempty"`

	// ConversationID routes client-surface messages to conversation subscribers.
	ConversationID string `msgpack:"conversation_id,omitempty" json:"conversation_id,omitempty"`

	// Type is the numeric message type
	Type MessageType `msgpack:"type" json:"type"`

	// Meta contains optional metadata passed through from workers
	Meta map[string]interface{} `msgpack:"meta,omitempty" json:"meta,omitempty"`

	// Body contains the message-specific payload
	Body interface{} `msgpack:"body" json:"body"`
}

// Common meta keys
const (
	MetaKeyTimestamp  = "timestamp"
	MetaKeyWorkerID   = "worker_id"
	MetaKeyModelType  = "model_type"
	MetaKeyRetransmit = "retransmit"
)

func NewEnvelope(id string, msgType MessageType, body interface{}) *Envelope {
	return &Envelope{
		ID:   id,
		Type: msgType,
		Body: body,
	}
}

func (e *Envelope) WithTask(taskID string) *Envelope {
	e.TaskID = taskID
	return e
}

func (e *Envelope) WithConversation(conversationID string) *Envelope {
	e.ConversationID = conversationID
	return e
}

func (e *Envelope) WithMeta(key string, value interface{}) *Envelope {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}
