package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIStreamChatEmitsDeltas(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	o := NewOpenAI("sk-test", "gpt-chat", "gpt-label")
	o.baseURL = server.URL

	var got string
	err := o.StreamChat(context.Background(), PromptParts{System: "sys", JDBlock: "block", UserMessage: "hi"}, func(tok string) {
		got += tok
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)

	assert.Equal(t, true, payload["stream"])
	messages := payload["messages"].([]any)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Contains(t, first["content"], "block")
}

func TestOpenAIExtractLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"title\":\"Engineer\",\"company\":null}"}}]}`))
	}))
	defer server.Close()

	o := NewOpenAI("sk-test", "gpt-chat", "gpt-label")
	o.baseURL = server.URL

	result, err := o.ExtractLabel(context.Background(), "some long jd text")
	require.NoError(t, err)
	require.NotNil(t, result.Title)
	assert.Equal(t, "Engineer", *result.Title)
	assert.Nil(t, result.Company)
}

func TestAnthropicStreamChatEmitsTextDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: message_start\n"))
		w.Write([]byte(`data: {"type":"message_start"}` + "\n\n"))
		w.Write([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"to"}}` + "\n\n"))
		w.Write([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"ken"}}` + "\n\n"))
		w.Write([]byte(`data: {"type":"message_stop"}` + "\n\n"))
	}))
	defer server.Close()

	a := NewAnthropic("sk-ant", "claude-chat", "claude-label")
	a.baseURL = server.URL

	var got string
	err := a.StreamChat(context.Background(), PromptParts{UserMessage: "hi"}, func(tok string) { got += tok })
	require.NoError(t, err)
	assert.Equal(t, "token", got)
}

func TestAnthropicExtractLabelErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	a := NewAnthropic("sk-ant", "claude-chat", "claude-label")
	a.baseURL = server.URL

	_, err := a.ExtractLabel(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
