// Package llm wraps the AI providers behind one interface: streaming
// chat grounded in the JD block, and title/company label extraction.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/jdc/internal/domain"
)

// Provider is one AI backend.
type Provider interface {
	// StreamChat generates a grounded reply, calling onToken for each
	// fragment in order. It returns only after the stream ends.
	StreamChat(ctx context.Context, parts PromptParts, onToken func(string)) error
	// ExtractLabel pulls a job title and company out of JD text. Fields
	// the model cannot find come back nil.
	ExtractLabel(ctx context.Context, text string) (*domain.LabelResult, error)
}

// ErrUnknownProvider is returned for provider names outside the
// supported set.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.Provider]Provider)}
}

func (r *Registry) Register(name domain.Provider, p Provider) {
	r.providers[name] = p
}

func (r *Registry) Get(name domain.Provider) (Provider, error) {
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

// labelMaxInput caps how much JD text goes to the label model.
const labelMaxInput = 3000

const labelInstructions = "Extract the job title and company name from the following " +
	"job description. Return ONLY valid JSON: {\"title\": \"...\", \"company\": \"...\"}. " +
	"If not found, use null for that field."

func truncateForLabel(text string) string {
	if len(text) > labelMaxInput {
		return text[:labelMaxInput]
	}
	return text
}

// parseLabelJSON decodes a label response, tolerating markdown code
// fences around the JSON.
func parseLabelJSON(raw string) (*domain.LabelResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result domain.LabelResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse label json: %w (response: %s)", err, raw)
	}
	return &result, nil
}
