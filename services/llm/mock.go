package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider is a deterministic provider for development and tests. A
// task containing "use tool <name>" triggers a tool call for that name;
// everything else returns a canned completion. Token usage is derived
// from the task length so budget accounting has something real to count.
type MockProvider struct{}

// NewMockProvider creates a mock LLM provider
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

// Complete returns a deterministic response for the request
func (p *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	tokens := int64(len(req.Task)/4 + 50)

	lower := strings.ToLower(req.Task)
	if idx := strings.Index(lower, "use tool "); idx >= 0 {
		rest := strings.Fields(req.Task[idx+len("use tool "):])
		if len(rest) > 0 {
			name := strings.Trim(rest[0], ".,;:")
			return Response{
				Content:    fmt.Sprintf("Invoking tool %s to complete the task.", name),
				ToolCalls:  []ToolCall{{ToolName: name, Parameters: map[string]interface{}{"message": req.Task}}},
				TokensUsed: tokens,
			}, nil
		}
	}

	return Response{
		Content:    fmt.Sprintf("Completed task: %s", req.Task),
		TokensUsed: tokens,
	}, nil
}
