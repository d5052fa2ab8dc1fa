package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one turn of a conversation as exchanged with the client.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a rolling conversation window owned by one user.
type Session struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"column:user_id;not null;index:idx_chat_sessions_user_updated,priority:1"`
	Messages  []Message `gorm:"column:messages;type:jsonb;serializer:json;not null"`
	StartedAt time.Time `gorm:"column:started_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_chat_sessions_user_updated,priority:2"`
}

func (Session) TableName() string {
	return "chat_sessions"
}

// LastUserMessage returns the most recent message authored by the user.
func LastUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i], true
		}
	}
	return Message{}, false
}
