package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/walletlink-go/pkg/journal"
)

// MemoryJournal is an in-memory implementation of IJournal.
//
// All data is lost when the process exits. Entries are copied on the way in
// and out to prevent external mutation.
type MemoryJournal struct {
	mu sync.RWMutex

	entries map[string]*journal.Entry

	closed bool
}

var _ journal.IJournal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		entries: make(map[string]*journal.Entry),
	}
}

func (m *MemoryJournal) Record(entry *journal.Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot record nil entry")
	}
	if entry.ID == "" {
		return fmt.Errorf("cannot record entry without ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	m.entries[entry.ID] = entry.Copy()
	return nil
}

func (m *MemoryJournal) Load(id string) (*journal.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	entry, exists := m.entries[id]
	if !exists {
		return nil, nil
	}
	return entry.Copy(), nil
}

func (m *MemoryJournal) List() ([]*journal.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	result := make([]*journal.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		result = append(result, entry.Copy())
	}
	journal.SortEntries(result)
	return result, nil
}

func (m *MemoryJournal) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	delete(m.entries, id)
	return nil
}

func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}

func (m *MemoryJournal) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}
	return nil
}
