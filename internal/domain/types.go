package domain

import "time"

// Provider identifies which AI backend handles labeling and chat.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider normalizes a provider name, falling back to OpenAI.
func ParseProvider(s string) Provider {
	if s == string(ProviderAnthropic) {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// JDItem is one job-description card in the active workspace.
type JDItem struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	LabelTitle     *string `json:"label_title"`
	LabelCompany   *string `json:"label_company"`
	IsMuted        bool    `json:"is_muted"`
	IsLabelLoading bool    `json:"-"`
}

// Role is a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in the chat session. Content is only mutable
// while IsStreaming is set, and only for assistant messages.
type ChatMessage struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"is_streaming"`
}

// SaveStatus reflects the outcome of the most recent sync attempt.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// ItemSnapshot is the persisted wire form of a JD item. Snapshots are
// compared for equality to detect no-op saves, so field order and JSON
// shape are part of the contract.
type ItemSnapshot struct {
	ID           string  `json:"id"`
	RawText      string  `json:"raw_text"`
	LabelTitle   *string `json:"label_title"`
	LabelCompany *string `json:"label_company"`
	IsMuted      bool    `json:"is_muted"`
	SortOrder    int     `json:"sort_order"`
}

// ItemRecord is a JD item as the backend returns it.
type ItemRecord struct {
	ID           string    `json:"id"`
	RawText      string    `json:"raw_text"`
	LabelTitle   *string   `json:"label_title"`
	LabelCompany *string   `json:"label_company"`
	IsMuted      bool      `json:"is_muted"`
	SortOrder    int       `json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageRecord is a persisted chat message as the backend returns it.
type MessageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkspaceSummary is one row in the workspace list.
type WorkspaceSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkspaceDetail is a fully loaded workspace.
type WorkspaceDetail struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Items        []ItemRecord    `json:"items"`
	ChatMessages []MessageRecord `json:"chat_messages"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// JDCard is the chat-request form of a JD item.
type JDCard struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	LabelTitle   *string `json:"label_title"`
	LabelCompany *string `json:"label_company"`
	IsMuted      bool    `json:"is_muted"`
}

// ChatTurn is a prior message sent along with a chat request.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload for the streaming chat endpoint.
type ChatRequest struct {
	JDCards     []JDCard   `json:"jd_cards"`
	Messages    []ChatTurn `json:"messages"`
	UserMessage string     `json:"user_message"`
	Provider    Provider   `json:"provider"`
	JDSetID     *string    `json:"jd_set_id,omitempty"`
}

// LabelResult holds AI-derived labels for a JD item. Nil fields mean the
// model could not find that piece of information.
type LabelResult struct {
	Title   *string `json:"title"`
	Company *string `json:"company"`
}
