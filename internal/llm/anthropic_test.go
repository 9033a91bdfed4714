package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floydai/floyd/pkg/types"
)

func TestAnthropicConvertMessagesSkipsSystemRole(t *testing.T) {
	msgs := []types.Message{
		types.NewTextMessage(types.RoleSystem, "be terse"),
		types.NewTextMessage(types.RoleUser, "hi"),
	}
	out, err := anthropicConvertMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestAnthropicConvertMessagesToolRoleBecomesToolResult(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleTool, ToolUseID: "call_1", Content: []types.ContentBlock{types.TextBlock{Text: "42"}}},
	}
	out, err := anthropicConvertMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestAnthropicConvertMessagesAssistantWithToolUse(t *testing.T) {
	msgs := []types.Message{
		{
			Role: types.RoleAssistant,
			Content: []types.ContentBlock{
				types.TextBlock{Text: "let me check"},
				types.ToolUseBlock{ID: "call_1", Name: "read_file", Input: map[string]any{"path": "a.go"}},
			},
		},
	}
	out, err := anthropicConvertMessages(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestAnthropicConvertMessagesDropsEmptyMessages(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: nil},
	}
	out, err := anthropicConvertMessages(msgs)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnthropicConvertToolsRejectsInvalidSchema(t *testing.T) {
	tools := []types.ToolDescriptor{
		{Name: "broken", Description: "d", InputSchema: json.RawMessage(`not json`)},
	}
	_, err := anthropicConvertTools(tools)
	assert.Error(t, err)
}

func TestAnthropicConvertToolsAcceptsValidSchema(t *testing.T) {
	tools := []types.ToolDescriptor{
		{
			Name:        "read_file",
			Description: "reads a file",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
		},
	}
	out, err := anthropicConvertTools(tools)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "read_file", out[0].OfTool.Name)
}

func TestAnthropicParseToolInputEmptyReturnsEmptyMap(t *testing.T) {
	args := anthropicParseToolInput("", "shell")
	assert.Equal(t, map[string]any{}, args)
}

func TestAnthropicParseToolInputMalformedDoesNotPanic(t *testing.T) {
	args := anthropicParseToolInput(`{"path": "a.go`, "read_file")
	assert.Equal(t, map[string]any{}, args)
}

func TestAnthropicParseToolInputValid(t *testing.T) {
	args := anthropicParseToolInput(`{"path":"a.go"}`, "read_file")
	assert.Equal(t, "a.go", args["path"])
}
