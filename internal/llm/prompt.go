package llm

import (
	"fmt"
	"strings"

	"github.com/pbaille/jdc/internal/domain"
)

// systemInstructions is the assistant's standing brief: ground every
// answer in the supplied JDs and keep advice concrete.
const systemInstructions = `You are JD-Compare AI, an expert career advisor that helps candidates compare and analyze multiple job descriptions side by side.

RULES:
- Always refer to jobs by their labels (e.g., "Senior Engineer @ Google") rather than generic references.
- When comparing, be specific and cite exact phrases from the JDs.
- If a JD is marked as [MUTED], acknowledge its existence but do not focus analysis on it unless the user explicitly asks.
- Provide balanced, actionable advice. Do not make decisions for the user.
- When asked scenario questions (e.g., "Which is best for transitioning to management?"), evaluate all active JDs against the scenario criteria.
- Flag contradictions or conflicts between JDs explicitly.

OUTPUT FORMAT:
- Be direct, short, and to the point. Avoid unnecessary explanations or filler text.
- Use markdown formatting sparingly.
- Use bold for job labels when referencing them.
- Use tables for structured comparisons only when essential.
- Use bullet points for lists when there are 3+ items.
- Keep responses concise; aim for 2-4 sentences unless detailed analysis is specifically requested.`

// maxHistoryMessages bounds how much prior conversation travels with
// each request.
const maxHistoryMessages = 15

// PromptParts is the provider-independent decomposition of a chat
// request. Keeping system instructions and the JD block separate lets
// providers place cache boundaries where their APIs want them.
type PromptParts struct {
	System      string
	JDBlock     string
	History     []domain.ChatTurn
	UserMessage string
}

// BuildPromptParts renders a chat request into prompt parts, capping
// history at the most recent messages.
func BuildPromptParts(req domain.ChatRequest) PromptParts {
	history := req.Messages
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	return PromptParts{
		System:      systemInstructions,
		JDBlock:     buildJDBlock(req.JDCards),
		History:     history,
		UserMessage: req.UserMessage,
	}
}

func buildJDBlock(cards []domain.JDCard) string {
	if len(cards) == 0 {
		return "=== NO JOB DESCRIPTIONS PROVIDED ==="
	}

	var sb strings.Builder
	sb.WriteString("=== JOB DESCRIPTIONS ===\n\n")

	active, muted := 0, 0
	for i, card := range cards {
		label := fmt.Sprintf("Job %d", i+1)
		if card.LabelTitle != nil && *card.LabelTitle != "" {
			label = *card.LabelTitle
		}
		if card.LabelCompany != nil && *card.LabelCompany != "" {
			label = fmt.Sprintf("%s @ %s", label, *card.LabelCompany)
		}

		status := "ACTIVE"
		if card.IsMuted {
			status = "MUTED"
			muted++
		} else {
			active++
		}

		fmt.Fprintf(&sb, "--- JOB %d: %s [%s] ---\n", i+1, label, status)
		sb.WriteString(strings.TrimSpace(card.Text))
		sb.WriteString("\n\n")
	}

	sb.WriteString("=== END JOB DESCRIPTIONS ===\n")
	fmt.Fprintf(&sb, "Total Active JDs: %d | Muted JDs: %d", active, muted)
	return sb.String()
}
