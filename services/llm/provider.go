// Package llm abstracts the language model behind the execution runtime.
package llm

import "context"

// Request is one completion request issued by the runtime
type Request struct {
	Task           string            `json:"task"`
	Context        map[string]string `json:"context,omitempty"`
	AvailableTools []string          `json:"available_tools,omitempty"`
	MaxTokens      int64             `json:"max_tokens,omitempty"`
}

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Response is the model's answer, including any tool calls it wants made
type Response struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	TokensUsed int64      `json:"tokens_used"`
}

// Provider is a language model backend. Implementations must honor
// context cancellation.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}
