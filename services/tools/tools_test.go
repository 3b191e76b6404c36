package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	t.Run("unknown tool", func(t *testing.T) {
		_, err := r.Get("missing")
		assert.ErrorIs(t, err, services.ErrToolNotFound)
	})

	t.Run("register and get", func(t *testing.T) {
		r.Register(NewEchoTool())
		tool, err := r.Get("echo")
		require.NoError(t, err)
		assert.Equal(t, "echo", tool.Name())
	})

	t.Run("list is sorted", func(t *testing.T) {
		r.Register(NewHTTPTool(time.Second))
		assert.Equal(t, []string{"echo", "http_request"}, r.List())
	})
}

func TestEchoTool(t *testing.T) {
	tool := NewEchoTool()

	t.Run("echoes message", func(t *testing.T) {
		result, err := tool.Execute(context.Background(), map[string]interface{}{"message": "hello"})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"message": "hello"}, result)
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestHTTPTool_Validation(t *testing.T) {
	tool := NewHTTPTool(time.Second)
	ctx := context.Background()

	t.Run("missing url", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{})
		assert.Error(t, err)
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{"url": "ftp://example.com/file"})
		assert.Error(t, err)
	})

	t.Run("bad method", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]interface{}{"url": "http://8.8.8.8/x", "method": "DELETE"})
		assert.Error(t, err)
	})
}

func TestCheckAddress(t *testing.T) {
	blocked := []string{
		"localhost",
		"127.0.0.1",
		"10.0.0.5",
		"192.168.1.1",
		"172.16.0.1",
		"169.254.169.254",
		"metadata.google.internal",
		"0.0.0.0",
	}
	for _, host := range blocked {
		t.Run(host, func(t *testing.T) {
			err := checkAddress(host)
			require.Error(t, err)
			assert.True(t, services.IsToolExecutionError(err))
		})
	}

	t.Run("public address passes", func(t *testing.T) {
		assert.NoError(t, checkAddress("8.8.8.8"))
	})
}
