package history

import (
	"sync"

	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
)

// DefaultCapacity is how many undo steps are kept.
const DefaultCapacity = 10

// Entry is a deep snapshot of the undoable part of the state.
type Entry struct {
	Items         []basket.Item
	Mode          basket.Mode
	SelectedStore *catalog.Store
}

// NewEntry deep-copies the given state into an Entry.
func NewEntry(items []basket.Item, mode basket.Mode, selected *catalog.Store) Entry {
	e := Entry{Items: basket.CloneItems(items), Mode: mode}
	if selected != nil {
		s := *selected
		e.SelectedStore = &s
	}
	return e
}

// Stack is a bounded LIFO of snapshots; pushing beyond capacity drops the
// oldest entry.
type Stack struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// New creates a stack holding at most capacity entries.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{capacity: capacity}
}

// Push records a snapshot.
func (s *Stack) Push(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
}

// Pop removes and returns the most recent snapshot.
func (s *Stack) Pop() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return Entry{}, false
	}
	last := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return last, true
}

// Len returns the number of available undo steps.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
