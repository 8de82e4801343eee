// Package label derives title/company labels for JD items by calling
// the extraction endpoint, debounced per item.
package label

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pbaille/jdc/internal/debounce"
	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/logging"
)

// DefaultDelay is the quiet period after the last keystroke before an
// extraction request goes out.
const DefaultDelay = 500 * time.Millisecond

// MinTextLength is the smallest trimmed text worth classifying; shorter
// text clears the labels instead.
const MinTextLength = 50

// Extractor calls the label-extraction endpoint. *apiclient.Client
// satisfies this.
type Extractor interface {
	ExtractLabel(ctx context.Context, text string, provider domain.Provider) (*domain.LabelResult, error)
}

// ItemWriter receives label results. *workspace.Store satisfies this.
type ItemWriter interface {
	SetLabel(id string, title, company *string)
	SetLabelLoading(id string, loading bool)
}

// Coordinator debounces label extraction per item. A later Trigger for
// the same item supersedes the pending one; responses from superseded
// requests are dropped by generation check rather than overwriting
// newer labels.
type Coordinator struct {
	sched     *debounce.Scheduler
	extractor Extractor
	items     ItemWriter
	provider  func() domain.Provider
	delay     time.Duration
	logger    *slog.Logger

	mu   sync.Mutex
	gens map[string]uint64
}

func NewCoordinator(extractor Extractor, items ItemWriter, provider func() domain.Provider, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		sched:     debounce.NewScheduler(),
		extractor: extractor,
		items:     items,
		provider:  provider,
		delay:     DefaultDelay,
		logger:    logger,
		gens:      make(map[string]uint64),
	}
}

// SetDelay overrides the debounce quiet period (tests).
func (c *Coordinator) SetDelay(d time.Duration) { c.delay = d }

// Stop cancels all pending triggers.
func (c *Coordinator) Stop() { c.sched.Stop() }

// Trigger records a text change for an item. Short text clears labels
// immediately with no network call; otherwise extraction runs after the
// quiet period. Extraction failures are swallowed: labels are
// non-critical and never surface to the user.
func (c *Coordinator) Trigger(itemID, text string) {
	gen := c.bump(itemID)

	if len(strings.TrimSpace(text)) < MinTextLength {
		c.sched.Cancel(itemID)
		c.items.SetLabel(itemID, nil, nil)
		return
	}

	c.sched.Schedule(itemID, c.delay, func() {
		c.items.SetLabelLoading(itemID, true)
		defer c.items.SetLabelLoading(itemID, false)

		result, err := c.extractor.ExtractLabel(context.Background(), text, c.provider())
		if err != nil {
			c.logger.Debug("label extraction failed", "item", itemID, "error", err)
			return
		}
		if !c.current(itemID, gen) {
			// A newer keystroke superseded this request while it was in
			// flight; its labels are stale.
			return
		}
		c.items.SetLabel(itemID, result.Title, result.Company)
	})
}

func (c *Coordinator) bump(itemID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[itemID]++
	return c.gens[itemID]
}

func (c *Coordinator) current(itemID string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[itemID] == gen
}
