// Package sync keeps the backend's copy of the JD items eventually
// consistent with local edits: change-detecting, debounced, replace-all
// pushes with an explicit synchronous flush for workspace switches.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/pbaille/jdc/internal/debounce"
	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/logging"
)

// DefaultDelay is the quiet period after the last edit before a save.
const DefaultDelay = 2 * time.Second

const saveKey = "workspace-save"

// Source supplies the state being persisted. *workspace.Store satisfies
// this.
type Source interface {
	Snapshot() []domain.ItemSnapshot
	WorkspaceID() string
}

// Pusher performs the replace-all item write. *apiclient.Client
// satisfies this.
type Pusher interface {
	SyncItems(ctx context.Context, id string, items []domain.ItemSnapshot) error
}

// Status is the process-wide observable save state, injected into the
// engine rather than held as ambient global state.
type Status struct {
	mu       stdsync.Mutex
	value    domain.SaveStatus
	onChange func(domain.SaveStatus)
}

func NewStatus() *Status {
	return &Status{value: domain.SaveIdle}
}

// Watch registers the single status observer.
func (s *Status) Watch(fn func(domain.SaveStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Status) Get() domain.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Status) set(v domain.SaveStatus) {
	s.mu.Lock()
	s.value = v
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Engine watches a Source and pushes changed snapshots to a Pusher. A
// failed push keeps the old baseline so the next change retries the
// same diff.
type Engine struct {
	sched  *debounce.Scheduler
	source Source
	pusher Pusher
	status *Status
	delay  time.Duration
	logger *slog.Logger

	mu       stdsync.Mutex
	baseline string
	primed   bool
}

func NewEngine(source Source, pusher Pusher, status *Status, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		sched:  debounce.NewScheduler(),
		source: source,
		pusher: pusher,
		status: status,
		delay:  DefaultDelay,
		logger: logger,
	}
}

// SetDelay overrides the debounce quiet period (tests).
func (e *Engine) SetDelay(d time.Duration) { e.delay = d }

// Stop cancels any pending save.
func (e *Engine) Stop() { e.sched.Stop() }

// encode produces the comparable form of a snapshot. Deep equality via
// the serialized bytes matches the replace-all write payload exactly.
func encode(snap []domain.ItemSnapshot) string {
	b, _ := json.Marshal(snap)
	return string(b)
}

// Prime records the current snapshot as the baseline without pushing.
// Called right after a workspace load so unchanged data is not
// immediately re-saved.
func (e *Engine) Prime() {
	snap := encode(e.source.Snapshot())
	e.mu.Lock()
	e.baseline = snap
	e.primed = true
	e.mu.Unlock()
	e.sched.Cancel(saveKey)
}

// NotifyChange observes the current state and schedules a debounced
// push if it differs from the last persisted baseline. The very first
// observation only records the baseline.
func (e *Engine) NotifyChange() {
	snap := encode(e.source.Snapshot())

	e.mu.Lock()
	if !e.primed {
		e.baseline = snap
		e.primed = true
		e.mu.Unlock()
		return
	}
	unchanged := snap == e.baseline
	e.mu.Unlock()

	if unchanged || e.source.WorkspaceID() == "" {
		return
	}
	e.sched.Schedule(saveKey, e.delay, func() {
		_ = e.push(context.Background())
	})
}

// Flush cancels any pending debounce and pushes synchronously. Used
// before a workspace switch; the caller tolerates failure rather than
// blocking the switch.
func (e *Engine) Flush(ctx context.Context) error {
	e.sched.Cancel(saveKey)
	return e.push(ctx)
}

func (e *Engine) push(ctx context.Context) error {
	id := e.source.WorkspaceID()
	if id == "" {
		return nil
	}

	snap := e.source.Snapshot()
	encoded := encode(snap)

	e.mu.Lock()
	if e.primed && encoded == e.baseline {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.status.set(domain.SaveSaving)
	if err := e.pusher.SyncItems(ctx, id, snap); err != nil {
		e.logger.Debug("item sync failed", "workspace", id, "error", err)
		e.status.set(domain.SaveError)
		return err
	}

	e.mu.Lock()
	e.baseline = encoded
	e.primed = true
	e.mu.Unlock()
	e.status.set(domain.SaveSaved)
	return nil
}
