// Package session models a chat conversation: an ordered message list
// with at most one in-flight assistant response at a time.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/logging"
	"github.com/pbaille/jdc/internal/stream"
)

// Streamer issues one streaming chat request. *stream.Client satisfies
// this; tests substitute fakes.
type Streamer interface {
	Chat(ctx context.Context, req domain.ChatRequest, cb stream.Callbacks)
}

// CardSource supplies the JD cards and workspace identity that ground a
// chat request.
type CardSource interface {
	CardsForChat() []domain.JDCard
	WorkspaceID() string
}

// Session is safe for concurrent use. A turn moves through
// Idle -> UserMessageAdded -> AssistantStreaming -> {Finished|Errored},
// and both terminal states return the session to Idle.
type Session struct {
	mu        sync.Mutex
	messages  []domain.ChatMessage
	streaming bool
	errMsg    string
	provider  domain.Provider

	// gen tags the current turn; callbacks from superseded turns (after
	// a reset or a later turn) are dropped instead of mutating state.
	gen uint64

	streamer  Streamer
	source    CardSource
	tokenSink func(string)
	logger    *slog.Logger
}

func New(streamer Streamer, source CardSource, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{
		streamer: streamer,
		source:   source,
		provider: domain.ProviderOpenAI,
		logger:   logger,
	}
}

// SetTokenSink registers an observer called once per streamed token, in
// arrival order. Used by the CLI to print the response as it arrives.
func (s *Session) SetTokenSink(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSink = fn
}

func (s *Session) SetProvider(p domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

func (s *Session) Provider() domain.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Err returns the last session-level error, cleared when the next
// assistant turn starts.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// AddUserMessage appends a complete user message. It never affects the
// streaming state.
func (s *Session) AddUserMessage(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUserLocked(content)
}

func (s *Session) addUserLocked(content string) {
	s.messages = append(s.messages, domain.ChatMessage{
		ID:        uuid.New().String(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// StartAssistantMessage appends an empty streaming assistant message,
// marks the session streaming, clears any prior error, and returns the
// new message's id. The id is the sole handle for token routing.
func (s *Session) StartAssistantMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startAssistantLocked()
}

func (s *Session) startAssistantLocked() string {
	id := uuid.New().String()
	s.messages = append(s.messages, domain.ChatMessage{
		ID:          id,
		Role:        domain.RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	})
	s.streaming = true
	s.errMsg = ""
	s.gen++
	return id
}

// AppendToMessage concatenates a fragment onto the named message. No-op
// if the id no longer exists.
func (s *Session) AppendToMessage(id, fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Content += fragment
			return
		}
	}
}

// FinishMessage freezes the named message and clears the session's
// streaming flag. Idempotent.
func (s *Session) FinishMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsStreaming = false
			return
		}
	}
}

// SetError records a session-level error and forces the session out of
// the streaming state.
func (s *Session) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = message
	s.streaming = false
}

// Reset clears the conversation, used on workspace switch. Any tokens
// still arriving from an old stream are dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.errMsg = ""
	s.streaming = false
	s.gen++
}

// LoadHistory replaces the conversation with persisted messages.
func (s *Session) LoadHistory(records []domain.MessageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]domain.ChatMessage, 0, len(records))
	for _, r := range records {
		s.messages = append(s.messages, domain.ChatMessage{
			ID:        r.ID,
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			Timestamp: r.CreatedAt,
		})
	}
	s.errMsg = ""
	s.streaming = false
	s.gen++
}

// SendMessage runs one full assistant turn: it appends the user
// message, opens the stream, and feeds events into the in-flight
// assistant message until the stream terminates. It blocks until the
// turn reaches a terminal state. Returns false without side effects if
// a turn is already streaming or the text is blank.
func (s *Session) SendMessage(ctx context.Context, text string) bool {
	s.mu.Lock()
	if s.streaming || strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return false
	}

	// History is captured before the new user message is appended; the
	// new text travels separately as user_message.
	history := make([]domain.ChatTurn, 0, len(s.messages))
	for _, m := range s.messages {
		history = append(history, domain.ChatTurn{Role: string(m.Role), Content: m.Content})
	}
	s.addUserLocked(text)
	assistantID := s.startAssistantLocked()
	gen := s.gen
	provider := s.provider
	sink := s.tokenSink
	s.mu.Unlock()

	req := domain.ChatRequest{
		JDCards:     s.source.CardsForChat(),
		Messages:    history,
		UserMessage: text,
		Provider:    provider,
	}
	if id := s.source.WorkspaceID(); id != "" {
		req.JDSetID = &id
	}

	s.streamer.Chat(ctx, req, stream.Callbacks{
		OnToken: func(tok string) {
			if !s.turnCurrent(gen) {
				return
			}
			s.AppendToMessage(assistantID, tok)
			if sink != nil {
				sink(tok)
			}
		},
		OnDone: func() {
			if !s.turnCurrent(gen) {
				return
			}
			s.FinishMessage(assistantID)
		},
		OnError: func(msg string) {
			if !s.turnCurrent(gen) {
				return
			}
			s.logger.Debug("chat turn failed", "error", msg)
			s.FinishMessage(assistantID)
			s.SetError(msg)
		},
	})
	return true
}

func (s *Session) turnCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
