// Package stream implements the client side of the chat event-stream
// protocol: one POST carrying the full conversation context, answered by
// newline-delimited "data: {json}" frames.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pbaille/jdc/internal/domain"
)

// Callbacks receive parsed stream events. They are invoked sequentially
// from a single goroutine: OnToken zero or more times in arrival order,
// then exactly one of OnDone or OnError. Nothing follows OnError.
type Callbacks struct {
	OnToken func(token string)
	OnDone  func()
	OnError func(message string)
}

// Client issues streaming chat requests against a jdc backend.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No overall timeout: a chat stream legitimately stays open for
		// the duration of the response.
		client: &http.Client{},
	}
}

// frame is the union of recognized event shapes. Exactly one field is
// set per frame; unknown shapes are ignored for forward compatibility.
type frame struct {
	Token string `json:"token"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Chat sends the request and consumes the response stream, dispatching
// events to cb until a terminal frame, end of stream, or read error.
// Transport failures surface as a single OnError call; there is no
// retry.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest, cb Callbacks) {
	body, err := json.Marshal(req)
	if err != nil {
		cb.OnError(fmt.Sprintf("encode request: %v", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		cb.OnError(fmt.Sprintf("create request: %v", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		cb.OnError(fmt.Sprintf("request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cb.OnError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status))
		return
	}

	// Scanner reassembles lines split across network chunks, so a frame
	// is never parsed until its trailing newline has arrived.
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			// Skip malformed frames without aborting the stream.
			continue
		}
		switch {
		case f.Token != "":
			cb.OnToken(f.Token)
		case f.Done:
			cb.OnDone()
			return
		case f.Error != "":
			cb.OnError(f.Error)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		cb.OnError(fmt.Sprintf("read stream: %v", err))
		return
	}
	// Stream ended cleanly without a done frame; treat as graceful
	// termination so the session never sticks in a streaming state.
	cb.OnDone()
}
