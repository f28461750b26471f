package audit

import (
	"context"
	"sync"

	"github.com/fleetline/agvctl/emit"
)

// MemStore is an in-memory Store for tests and for a vehicle run with no
// audit backend configured. Data is lost on process exit.
type MemStore struct {
	mu     sync.RWMutex
	events map[string][]emit.Event
	errors map[string][]ErrorRecord
}

// NewMemStore returns an empty in-memory audit store.
func NewMemStore() *MemStore {
	return &MemStore{
		events: make(map[string][]emit.Event),
		errors: make(map[string][]ErrorRecord),
	}
}

func (m *MemStore) AppendEvent(_ context.Context, e emit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.OrderID] = append(m.events[e.OrderID], e)
	return nil
}

func (m *MemStore) AppendError(_ context.Context, r ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[r.OrderID] = append(m.errors[r.OrderID], r)
	return nil
}

func (m *MemStore) EventsForOrder(_ context.Context, orderID string, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[orderID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]emit.Event, len(events))
	copy(out, events)
	return out, nil
}

func (m *MemStore) ErrorsForOrder(_ context.Context, orderID string, limit int) ([]ErrorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.errors[orderID]
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]ErrorRecord, len(records))
	copy(out, records)
	return out, nil
}

func (m *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
