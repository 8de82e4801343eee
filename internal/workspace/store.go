// Package workspace holds the client-side editable state: the JD item
// list, the active workspace identity, and the logic that keeps both in
// step with the backend.
package workspace

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pbaille/jdc/internal/domain"
)

// Store is the in-memory item list for the active workspace. All
// mutations are serialized behind one mutex; observers registered with
// OnChange are notified after each persistable mutation.
type Store struct {
	mu            sync.Mutex
	items         []domain.JDItem
	workspaceID   string
	workspaceName string
	onChange      func()
}

const defaultWorkspaceName = "Untitled Workspace"

func NewStore() *Store {
	return &Store{
		items:         []domain.JDItem{emptyItem()},
		workspaceName: defaultWorkspaceName,
	}
}

func emptyItem() domain.JDItem {
	return domain.JDItem{ID: uuid.New().String()}
}

// OnChange registers the single change observer. Loading and resets do
// not notify; only user-visible edits do.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) WorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceID
}

func (s *Store) WorkspaceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceName
}

func (s *Store) SetWorkspaceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceName = name
}

// Items returns a copy of the ordered item list.
func (s *Store) Items() []domain.JDItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JDItem, len(s.items))
	copy(out, s.items)
	return out
}

// AddItem appends an empty item and returns its id.
func (s *Store) AddItem() string {
	s.mu.Lock()
	item := emptyItem()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.notify()
	return item.ID
}

func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.mu.Unlock()
	s.notify()
}

// UpdateItemText replaces the item's raw text. Labels are not touched
// here; invalidation is the label coordinator's call.
func (s *Store) UpdateItemText(id, text string) {
	s.mutate(id, func(it *domain.JDItem) { it.Text = text })
}

func (s *Store) ToggleMute(id string) {
	s.mutate(id, func(it *domain.JDItem) { it.IsMuted = !it.IsMuted })
}

func (s *Store) SetLabel(id string, title, company *string) {
	s.mutate(id, func(it *domain.JDItem) {
		it.LabelTitle = title
		it.LabelCompany = company
	})
}

// SetLabelLoading flips the transient loading flag. It is UI state, not
// persisted, so it does not notify the change observer.
func (s *Store) SetLabelLoading(id string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsLabelLoading = loading
			return
		}
	}
}

func (s *Store) mutate(id string, fn func(*domain.JDItem)) {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id {
			fn(&s.items[i])
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// CardsForChat returns every item with non-blank text, muted ones
// included; mute travels as a flag for the model to honor.
func (s *Store) CardsForChat() []domain.JDCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cards []domain.JDCard
	for _, it := range s.items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		cards = append(cards, domain.JDCard{
			ID:           it.ID,
			Text:         it.Text,
			LabelTitle:   it.LabelTitle,
			LabelCompany: it.LabelCompany,
			IsMuted:      it.IsMuted,
		})
	}
	return cards
}

// Snapshot serializes the current items in persistable order.
func (s *Store) Snapshot() []domain.ItemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make([]domain.ItemSnapshot, 0, len(s.items))
	for i, it := range s.items {
		snap = append(snap, domain.ItemSnapshot{
			ID:           it.ID,
			RawText:      it.Text,
			LabelTitle:   it.LabelTitle,
			LabelCompany: it.LabelCompany,
			IsMuted:      it.IsMuted,
			SortOrder:    i,
		})
	}
	return snap
}

// LoadFrom replaces local state with a freshly loaded workspace. A
// workspace with zero items gets exactly one default empty item.
func (s *Store) LoadFrom(detail *domain.WorkspaceDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceID = detail.ID
	s.workspaceName = detail.Name
	if len(detail.Items) == 0 {
		s.items = []domain.JDItem{emptyItem()}
		return
	}
	s.items = make([]domain.JDItem, 0, len(detail.Items))
	for _, rec := range detail.Items {
		s.items = append(s.items, domain.JDItem{
			ID:           rec.ID,
			Text:         rec.RawText,
			LabelTitle:   rec.LabelTitle,
			LabelCompany: rec.LabelCompany,
			IsMuted:      rec.IsMuted,
		})
	}
}

// ResetForSwitch clears local state back to a single empty item with no
// active workspace.
func (s *Store) ResetForSwitch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.JDItem{emptyItem()}
	s.workspaceID = ""
	s.workspaceName = defaultWorkspaceName
}
