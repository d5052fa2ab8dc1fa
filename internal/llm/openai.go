package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds the wait for response headers, not the whole stream.
	Timeout time.Duration
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

func NewOpenAIGenerator(cfg OpenAIConfig, logger *slog.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Timeout
		clientCfg.HTTPClient = &http.Client{Transport: transport}
	}

	logger.Info("initializing completion client", "model", cfg.Model, "base_url", clientCfg.BaseURL)

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate opens the first completion synchronously so setup failures are
// returned here. Failures in later steps surface through Recv.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Stream, error) {
	budget := req.StepBudget
	if budget <= 0 {
		budget = DefaultStepBudget
	}

	messages := toOpenAIMessages(req.SystemPrompt, req.Messages, req.Attachments)
	tools, byName := toOpenAITools(req.Tools)

	ctx, cancel := context.WithCancel(ctx)
	first, err := g.client.CreateChatCompletionStream(ctx, g.request(messages, tools))
	if err != nil {
		cancel()
		g.logger.Error("completion request failed", "model", g.model, "error", err)
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	return newPipe(ctx, cancel, func(ctx context.Context, emit emitFunc) error {
		return g.run(ctx, first, messages, tools, byName, budget, emit)
	}), nil
}

func (g *OpenAIGenerator) request(messages []openai.ChatCompletionMessage, tools []openai.Tool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
}

func (g *OpenAIGenerator) run(
	ctx context.Context,
	stream *openai.ChatCompletionStream,
	messages []openai.ChatCompletionMessage,
	tools []openai.Tool,
	byName map[string]Tool,
	budget int,
	emit emitFunc,
) error {
	for step := 1; ; step++ {
		text, calls, err := consume(stream, emit)
		stream.Close()
		if err != nil {
			return err
		}

		if len(calls) == 0 {
			metrics.LLMSteps.Observe(float64(step))
			return nil
		}
		if step >= budget {
			g.logger.Warn("completion step budget exhausted", "model", g.model, "steps", step)
			metrics.LLMSteps.Observe(float64(step))
			return nil
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})
		for _, call := range calls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    g.callTool(ctx, byName, call),
				ToolCallID: call.ID,
			})
		}

		stream, err = g.client.CreateChatCompletionStream(ctx, g.request(messages, tools))
		if err != nil {
			return fmt.Errorf("completion step %d failed: %w", step+1, err)
		}
	}
}

func (g *OpenAIGenerator) callTool(ctx context.Context, byName map[string]Tool, call openai.ToolCall) string {
	tool, ok := byName[call.Function.Name]
	if !ok {
		g.logger.Warn("model called unknown tool", "tool", call.Function.Name)
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	result, err := tool.Call(ctx, call.Function.Arguments)
	if err != nil {
		g.logger.Warn("tool call failed", "tool", call.Function.Name, "error", err)
		return "error: " + err.Error()
	}
	return result
}

// consume forwards text deltas and assembles streamed tool calls.
func consume(stream *openai.ChatCompletionStream, emit emitFunc) (string, []openai.ToolCall, error) {
	var (
		text  strings.Builder
		calls = map[int]*openai.ToolCall{}
	)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if err := emit(delta.Content); err != nil {
				return "", nil, err
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := len(calls)
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := calls[idx]
			if !ok {
				call = &openai.ToolCall{Type: openai.ToolTypeFunction}
				calls[idx] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			call.Function.Name += tc.Function.Name
			call.Function.Arguments += tc.Function.Arguments
		}
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]openai.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, *calls[idx])
	}
	return text.String(), out, nil
}

func toOpenAIMessages(system string, messages []chatDatamodel.Message, attachments []Attachment) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	lastUser := -1
	for i, m := range messages {
		if m.Role == chatDatamodel.RoleUser {
			lastUser = i
		}
	}

	for i, m := range messages {
		switch m.Role {
		case chatDatamodel.RoleUser, chatDatamodel.RoleAssistant, chatDatamodel.RoleSystem:
		default:
			continue
		}
		if i == lastUser && len(attachments) > 0 {
			out = append(out, openai.ChatCompletionMessage{
				Role:         m.Role,
				MultiContent: withAttachments(m.Content, attachments),
			})
			continue
		}
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// withAttachments sends images as image parts and names other files in text.
func withAttachments(content string, attachments []Attachment) []openai.ChatMessagePart {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: content}}
	for _, a := range attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: a.URL},
			})
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Attached file %s (%s): %s", a.Name, a.ContentType, a.URL),
		})
	}
	return parts
}

func toOpenAITools(tools []Tool) ([]openai.Tool, map[string]Tool) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
		byName[t.Name()] = t
	}
	return out, byName
}
