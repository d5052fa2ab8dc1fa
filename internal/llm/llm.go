// Package llm drives streaming chat completions, including the tool-call
// loop, behind a small pull-based stream interface.
package llm

import (
	"context"

	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
)

const DefaultStepBudget = 10

// Tool is a function the model may call while answering.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(ctx context.Context, arguments string) (string, error)
}

// Attachment is a file the user sent along with their latest message.
type Attachment struct {
	Name        string
	URL         string
	ContentType string
}

type Request struct {
	SystemPrompt string
	Messages     []chatDatamodel.Message
	// Attachments belong to the last user message.
	Attachments []Attachment
	// StepBudget caps the number of completions, tool rounds included.
	StepBudget int
	Tools      []Tool
}

// Stream yields text fragments until io.EOF. Close stops generation and
// releases the underlying connection; it is safe to call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Stream, error)
}
