package events

import (
	"time"

	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/google/uuid"
)

const (
	EventTypeConversationSubmitted = "chat.conversation_submitted"
)

// ConversationSubmittedEvent carries the message list a user sent before the
// assistant replies, so it can be stored without delaying the stream.
type ConversationSubmittedEvent struct {
	BaseEvent
	UserID   string                  `json:"user_id"`
	Messages []chatDatamodel.Message `json:"messages"`
}

func NewConversationSubmittedEvent(userID string, messages []chatDatamodel.Message) *ConversationSubmittedEvent {
	msgs := make([]chatDatamodel.Message, len(messages))
	copy(msgs, messages)

	return &ConversationSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeConversationSubmitted,
			Timestamp: time.Now(),
		},
		UserID:   userID,
		Messages: msgs,
	}
}
