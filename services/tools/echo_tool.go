package tools

import (
	"context"

	"github.com/agentgrid/control-plane/services"
)

// EchoTool returns its message parameter unchanged. Useful for smoke
// tests and wiring verification.
type EchoTool struct{}

// NewEchoTool creates an echo tool
func NewEchoTool() *EchoTool { return &EchoTool{} }

func (t *EchoTool) Name() string        { return "echo" }
func (t *EchoTool) Description() string { return "Echoes the provided message back to the caller" }

func (t *EchoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (t *EchoTool) Execute(_ context.Context, params map[string]interface{}) (interface{}, error) {
	msg, ok := params["message"].(string)
	if !ok {
		return nil, services.WrapValidation("message parameter is required", nil)
	}
	return map[string]interface{}{"message": msg}, nil
}
