package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"gemini without key", Config{Provider: "gemini"}},
		{"default provider without key", Config{}},
		{"bedrock without region", Config{Provider: "bedrock"}},
		{"unknown provider", Config{Provider: "openai", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, nil)
			assert.True(t, errors.Is(err, ErrNotConfigured))
		})
	}
}

func TestEncodeBedrockRequest(t *testing.T) {
	body, err := encodeBedrockRequest(Request{System: "be kind", Prompt: "write", MaxTokens: 2000, Temperature: 0.8})
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "bedrock-2023-05-31", got["anthropic_version"])
	assert.Equal(t, 2000.0, got["max_tokens"])
	assert.Equal(t, "be kind", got["system"])
	assert.Equal(t, 0.8, got["temperature"])
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])
}

func TestDecodeBedrockResponse(t *testing.T) {
	resp, err := decodeBedrockResponse([]byte(`{
		"content":[{"type":"text","text":"Subject: Hi"},{"type":"tool_use"},{"type":"text","text":"\nBody"}],
		"usage":{"input_tokens":100,"output_tokens":50}}`))
	require.NoError(t, err)
	assert.Equal(t, "Subject: Hi\nBody", resp.Text)
	assert.Equal(t, 150, resp.TokensUsed)

	_, err = decodeBedrockResponse([]byte(`{"content":[]}`))
	assert.Error(t, err)
	_, err = decodeBedrockResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestGeminiConfig(t *testing.T) {
	cfg := geminiConfig(Request{System: "sys", MaxTokens: 2000, Temperature: 0.8})
	assert.Equal(t, int32(2000), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.8, *cfg.Temperature, 1e-6)
	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.SystemInstruction.Parts, 1)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
}

func TestFuncAdapter(t *testing.T) {
	var o Oracle = Func(func(_ context.Context, req Request) (*Response, error) {
		return &Response{Text: req.Prompt}, nil
	})
	resp, err := o.Generate(context.Background(), Request{Prompt: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "echo", resp.Text)
}
