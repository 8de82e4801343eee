package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/jdc/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestJDBlockRendersLabelsAndStatus(t *testing.T) {
	parts := BuildPromptParts(domain.ChatRequest{
		JDCards: []domain.JDCard{
			{ID: "a", Text: "Build Go services.", LabelTitle: strPtr("Senior Engineer"), LabelCompany: strPtr("Google")},
			{ID: "b", Text: "Maintain legacy PHP.", IsMuted: true},
		},
		UserMessage: "compare",
	})

	assert.Contains(t, parts.JDBlock, "--- JOB 1: Senior Engineer @ Google [ACTIVE] ---")
	assert.Contains(t, parts.JDBlock, "--- JOB 2: Job 2 [MUTED] ---")
	assert.Contains(t, parts.JDBlock, "Total Active JDs: 1 | Muted JDs: 1")
	assert.Contains(t, parts.System, "JD-Compare AI")
}

func TestJDBlockWithoutCards(t *testing.T) {
	parts := BuildPromptParts(domain.ChatRequest{UserMessage: "anything"})
	assert.Equal(t, "=== NO JOB DESCRIPTIONS PROVIDED ===", parts.JDBlock)
}

func TestHistoryCappedToMostRecent(t *testing.T) {
	var turns []domain.ChatTurn
	for i := 0; i < 40; i++ {
		turns = append(turns, domain.ChatTurn{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
	}
	parts := BuildPromptParts(domain.ChatRequest{Messages: turns})

	require.Len(t, parts.History, maxHistoryMessages)
	assert.Equal(t, "msg-25", parts.History[0].Content)
	assert.Equal(t, "msg-39", parts.History[len(parts.History)-1].Content)
}

func TestParseLabelJSONStripsFences(t *testing.T) {
	for _, raw := range []string{
		`{"title": "Engineer", "company": "Acme"}`,
		"```json\n{\"title\": \"Engineer\", \"company\": \"Acme\"}\n```",
		"```\n{\"title\": \"Engineer\", \"company\": \"Acme\"}\n```",
	} {
		result, err := parseLabelJSON(raw)
		require.NoError(t, err, raw)
		require.NotNil(t, result.Title)
		assert.Equal(t, "Engineer", *result.Title)
		require.NotNil(t, result.Company)
		assert.Equal(t, "Acme", *result.Company)
	}
}

func TestParseLabelJSONNullFields(t *testing.T) {
	result, err := parseLabelJSON(`{"title": null, "company": null}`)
	require.NoError(t, err)
	assert.Nil(t, result.Title)
	assert.Nil(t, result.Company)
}

func TestParseLabelJSONRejectsGarbage(t *testing.T) {
	_, err := parseLabelJSON("Sorry, I cannot help with that.")
	assert.Error(t, err)
}

func TestTruncateForLabelCapsInput(t *testing.T) {
	long := strings.Repeat("x", labelMaxInput+500)
	assert.Len(t, truncateForLabel(long), labelMaxInput)
	assert.Equal(t, "short", truncateForLabel("short"))
}

func TestAnthropicMessagesAlternate(t *testing.T) {
	parts := PromptParts{
		History: []domain.ChatTurn{
			{Role: "user", Content: "one"},
			{Role: "user", Content: "two"},
			{Role: "assistant", Content: "reply"},
		},
		UserMessage: "three",
	}
	messages := buildAnthropicMessages(parts)

	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "one\ntwo", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "user", messages[2].Role)
	assert.Equal(t, "three", messages[2].Content)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	p := NewOpenAI("sk-test", "gpt-chat", "gpt-label")
	r.Register(domain.ProviderOpenAI, p)

	got, err := r.Get(domain.ProviderOpenAI)
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.Get(domain.ProviderAnthropic)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
