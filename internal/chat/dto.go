package chat

import (
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/conversation"
	"github.com/frahmantamala/medichat/internal/llm"
)

const (
	MaxMessages    = 100
	MaxAttachments = 10
)

type MessageDTO struct {
	ID      string `json:"id,omitempty" validate:"omitempty,max=128"`
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"maxbytes"`
}

type AttachmentDTO struct {
	Name        string `json:"name" validate:"required,max=255"`
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"contentType" validate:"required,max=127"`
}

type ChatRequestDTO struct {
	Messages    []MessageDTO    `json:"messages" validate:"required,min=1,max=100,dive"`
	Attachments []AttachmentDTO `json:"attachments,omitempty" validate:"omitempty,max=10,dive"`
}

func (d ChatRequestDTO) ToMessages() []chatDatamodel.Message {
	out := make([]chatDatamodel.Message, 0, len(d.Messages))
	for _, m := range d.Messages {
		out = append(out, chatDatamodel.Message{ID: m.ID, Role: m.Role, Content: m.Content})
	}
	return out
}

func (d ChatRequestDTO) ToAttachments() []llm.Attachment {
	if len(d.Attachments) == 0 {
		return nil
	}
	out := make([]llm.Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		out = append(out, llm.Attachment{Name: a.Name, URL: a.URL, ContentType: a.ContentType})
	}
	return out
}

type HistoryResponse struct {
	History []conversation.Summary `json:"history"`
}
