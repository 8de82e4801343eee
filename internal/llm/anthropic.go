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

const defaultAnthropicBaseURL = "https://api.anthropic.com"
const anthropicVersion = "2023-06-01"

// Anthropic implements Provider against the Messages API.
type Anthropic struct {
	baseURL    string
	apiKey     string
	chatModel  string
	labelModel string
	client     *http.Client
}

func NewAnthropic(apiKey, chatModel, labelModel string) *Anthropic {
	return &Anthropic{
		baseURL:    defaultAnthropicBaseURL,
		apiKey:     apiKey,
		chatModel:  chatModel,
		labelModel: labelModel,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Anthropic) StreamChat(ctx context.Context, parts PromptParts, onToken func(string)) error {
	payload := map[string]any{
		"model":      a.chatModel,
		"max_tokens": 4096,
		"system":     parts.System + "\n\n" + parts.JDBlock,
		"messages":   buildAnthropicMessages(parts),
		"stream":     true,
	}
	resp, err := a.post(ctx, payload)
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
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
			continue
		}
		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			onToken(event.Delta.Text)
		}
	}
	return scanner.Err()
}

// buildAnthropicMessages folds history and the new user message into a
// strictly alternating user/assistant sequence, merging same-role
// neighbors as the API requires.
func buildAnthropicMessages(parts PromptParts) []anthropicMessage {
	var messages []anthropicMessage
	for _, turn := range parts.History {
		messages = append(messages, anthropicMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: parts.UserMessage})

	merged := messages[:1]
	for _, msg := range messages[1:] {
		if msg.Role == merged[len(merged)-1].Role {
			merged[len(merged)-1].Content += "\n" + msg.Content
		} else {
			merged = append(merged, msg)
		}
	}
	return merged
}

func (a *Anthropic) ExtractLabel(ctx context.Context, text string) (*domain.LabelResult, error) {
	payload := map[string]any{
		"model":      a.labelModel,
		"max_tokens": 100,
		"messages": []anthropicMessage{
			{Role: "user", Content: labelInstructions + "\n\n" + truncateForLabel(text)},
		},
	}
	resp, err := a.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", parsed.Error.Message)
	}
	if len(parsed.Content) == 0 {
		return nil, errors.New("anthropic empty response")
	}
	return parseLabelJSON(parsed.Content[0].Text)
}

func (a *Anthropic) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(errorBody))
	}
	return resp, nil
}
