package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	valid := []string{"acme", "Acme Corp", "agent-1", "a_b.c", "x"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name, "name"), name)
	}

	invalid := []string{"", "-leading-dash", ".leading-dot", strings.Repeat("x", 129), "emoji🙂"}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name, "name"), name)
	}
}

func TestValidateToolName(t *testing.T) {
	valid := []string{"search", "http_request", "Tool2", "*"}
	for _, name := range valid {
		assert.NoError(t, ValidateToolName(name, "tool"), name)
	}

	invalid := []string{"", "2tool", "has space", "has-dash", strings.Repeat("t", 65)}
	for _, name := range invalid {
		assert.Error(t, ValidateToolName(name, "tool"), name)
	}
}

func TestValidateTokenLimit(t *testing.T) {
	assert.NoError(t, ValidateTokenLimit(1, "limit"))
	assert.NoError(t, ValidateTokenLimit(MaxTokenLimit, "limit"))
	assert.Error(t, ValidateTokenLimit(0, "limit"))
	assert.Error(t, ValidateTokenLimit(-5, "limit"))
	assert.Error(t, ValidateTokenLimit(MaxTokenLimit+1, "limit"))
}

func TestValidateStruct(t *testing.T) {
	type body struct {
		Name  string `validate:"required"`
		Count int    `validate:"gte=0"`
	}

	assert.NoError(t, ValidateStruct(&body{Name: "x", Count: 1}))
	assert.Error(t, ValidateStruct(&body{Count: 1}))
	assert.Error(t, ValidateStruct(&body{Name: "x", Count: -1}))
}
