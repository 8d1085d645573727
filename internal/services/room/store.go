package room

import "sync"

// Store is the in-memory home of every live room, keyed by room id. It holds
// data only; all mutation rules live in the service. Lifecycle is the process
// lifetime, rooms are removed the moment their last participant is gone.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*Room)}
}

// Get returns the canonical room for an id.
func (s *Store) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	return r, ok
}

// Put inserts or replaces a room.
func (s *Store) Put(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[r.ID] = r
}

// Delete removes a room and reports whether it existed.
func (s *Store) Delete(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}
