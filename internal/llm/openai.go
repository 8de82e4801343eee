package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pbaille/jdc/internal/domain"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAI implements Provider against the chat completions API.
type OpenAI struct {
	baseURL    string
	apiKey     string
	chatModel  string
	labelModel string
	client     *http.Client
}

func NewOpenAI(apiKey, chatModel, labelModel string) *OpenAI {
	return &OpenAI{
		baseURL:    defaultOpenAIBaseURL,
		apiKey:     apiKey,
		chatModel:  chatModel,
		labelModel: labelModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) StreamChat(ctx context.Context, parts PromptParts, onToken func(string)) error {
	// System message = instructions + JD block, a stable prefix the API
	// can cache across turns.
	messages := []openAIMessage{{Role: "system", Content: parts.System + "\n\n" + parts.JDBlock}}
	for _, turn := range parts.History {
		messages = append(messages, openAIMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: parts.UserMessage})

	payload := map[string]any{
		"model":      o.chatModel,
		"messages":   messages,
		"stream":     true,
		"max_tokens": 4096,
	}
	resp, err := o.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onToken(chunk.Choices[0].Delta.Content)
		}
	}
	return scanner.Err()
}

func (o *OpenAI) ExtractLabel(ctx context.Context, text string) (*domain.LabelResult, error) {
	payload := map[string]any{
		"model": o.labelModel,
		"messages": []openAIMessage{
			{Role: "system", Content: labelInstructions},
			{Role: "user", Content: truncateForLabel(text)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"max_tokens":      100,
	}
	resp, err := o.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("openai empty response")
	}
	return parseLabelJSON(parsed.Choices[0].Message.Content)
}

func (o *OpenAI) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(errorBody))
	}
	return resp, nil
}
