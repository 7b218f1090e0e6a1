package notification

import (
	"fmt"
	"strconv"
	"sync"
)

// MemoryEventQueue keeps the latest events in memory
type MemoryEventQueue struct {
	sync.RWMutex
	events   []Event
	latestID uint64
	capacity uint64
}

func NewMemoryEventQueue(capacity uint64) *MemoryEventQueue {
	return &MemoryEventQueue{capacity: capacity}
}

func (m *MemoryEventQueue) addRotate(event Event) error {
	m.Lock()
	defer m.Unlock()

	m.events = append(m.events, event)
	if uint64(len(m.events)) > m.capacity {
		m.events = append([]Event(nil), m.events[uint64(len(m.events))-m.capacity:]...)
	}
	return nil
}

// getAllAfter returns the events after the given id; all available ones if it was rotated out
func (m *MemoryEventQueue) getAllAfter(id string) ([]Event, error) {
	after, err := strconv.ParseUint(id, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing latest ID: %w", err)
	}

	m.RLock()
	defer m.RUnlock()

	var events []Event
	for _, event := range m.events {
		eventID, err := strconv.ParseUint(event.ID, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing event ID: %w", err)
		}
		if eventID > after {
			events = append(events, event)
		}
	}
	return events, nil
}

func (m *MemoryEventQueue) getNewID() (string, error) {
	m.Lock()
	defer m.Unlock()
	m.latestID++
	return strconv.FormatUint(m.latestID, 16), nil
}

func (m *MemoryEventQueue) Close() {}
