package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/frahmantamala/medichat/internal/llm"
)

// SearchTool exposes document search to the model on behalf of one user.
type SearchTool struct {
	service *Service
	userID  string
}

var _ llm.Tool = (*SearchTool)(nil)

func (s *Service) Tool(userID string) *SearchTool {
	return &SearchTool{service: s, userID: userID}
}

func (t *SearchTool) Name() string {
	return "search_documents"
}

func (t *SearchTool) Description() string {
	return "Search the medical knowledge base for passages relevant to the question. " +
		"Results are already limited to what the user may access."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to search for.",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Call(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	result, err := t.service.Search(ctx, t.userID, args.Query, 0)
	if err != nil {
		return "", err
	}
	if len(result.Documents) == 0 {
		return "No matching documents.", nil
	}

	var sb strings.Builder
	for i, doc := range result.Documents {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, strings.TrimSpace(doc.Content))
	}
	return sb.String(), nil
}
