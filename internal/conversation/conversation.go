// Package conversation stores chat sessions as rolling windows of one
// continuous interaction and serves a user's recent history.
package conversation

import (
	"time"

	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
)

const (
	// DefaultWindow is how long after its last update a session is still reused.
	DefaultWindow = time.Hour

	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// Summary is one session as returned by the history endpoint.
type Summary struct {
	ID        string                  `json:"id"`
	Messages  []chatDatamodel.Message `json:"messages"`
	StartedAt time.Time               `json:"startedAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func FromDataModel(s *chatDatamodel.Session) Summary {
	messages := s.Messages
	if messages == nil {
		messages = []chatDatamodel.Message{}
	}
	return Summary{
		ID:        s.ID,
		Messages:  messages,
		StartedAt: s.StartedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// NormalizeLimit applies the default and upper bound to a requested history size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
