package app

// Stream event types, in emission order: one metadata, zero or more chunks,
// then exactly one terminal complete or error.
const (
	EventMetadata = "metadata"
	EventChunk    = "chunk"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is one frame of a streaming chat response.
type StreamEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	MessageID      int64  `json:"message_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Message        string `json:"message,omitempty"`
}

func metadataEvent(conversationID, userMessageID int64) StreamEvent {
	return StreamEvent{Type: EventMetadata, ConversationID: conversationID, MessageID: userMessageID}
}

func chunkEvent(content string) StreamEvent {
	return StreamEvent{Type: EventChunk, Content: content}
}

func completeEvent(assistantMessageID int64) StreamEvent {
	return StreamEvent{Type: EventComplete, MessageID: assistantMessageID}
}

func errorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
