package ws

import (
	"sync"

	"pokerplan/internal/services/room"
)

// memberSet is the fan-out set for one room.
type memberSet struct {
	mu      sync.RWMutex
	members map[Subscriber]struct{}
}

func newMemberSet() *memberSet {
	return &memberSet{members: map[Subscriber]struct{}{}}
}

func (m *memberSet) add(s Subscriber) {
	m.mu.Lock()
	m.members[s] = struct{}{}
	m.mu.Unlock()
}

func (m *memberSet) remove(s Subscriber) {
	m.mu.Lock()
	delete(m.members, s)
	m.mu.Unlock()
}

func (m *memberSet) empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.members) == 0
}

// broadcast delivers snap to every member and returns the subscribers whose
// delivery failed. Removal is the hub's job; pruning here would leave an
// empty set mapped in the hub forever.
func (m *memberSet) broadcast(snap *room.Room) []Subscriber {
	// Take a quick snapshot of the current members
	m.mu.RLock()
	members := make([]Subscriber, 0, len(m.members))
	for s := range m.members {
		members = append(members, s)
	}
	m.mu.RUnlock()

	// Do the I/O outside the lock
	var failed []Subscriber
	for _, s := range members {
		if err := s.Deliver(snap); err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}
