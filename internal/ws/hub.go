package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"pokerplan/internal/services/room"
)

// Subscriber receives every snapshot broadcast for a room it subscribed to.
// A Deliver error drops the subscriber from the room.
type Subscriber interface {
	Deliver(snap *room.Room) error
}

// Hub keeps subscriber sets per room id and fans every published snapshot out
// to them. Publishes are drained by a single goroutine from a buffered
// channel, so per-room delivery order equals mutation order.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]*memberSet
	updates chan update
}

type update struct {
	roomID string
	snap   *room.Room
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]*memberSet),
		updates: make(chan update, 256),
	}
}

// Run drains the update queue until ctx is cancelled. Call it once, from its
// own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-h.updates:
			if ms, ok := h.members(u.roomID); ok {
				for _, s := range ms.broadcast(u.snap) {
					h.Unsubscribe(u.roomID, s)
				}
			}
		}
	}
}

// Publish enqueues a snapshot for fan-out. It is the room.Publisher hook the
// mutation engine calls after every successful command; delivery is
// best-effort, at most once per mutation.
func (h *Hub) Publish(roomID string, snap *room.Room) {
	select {
	case h.updates <- update{roomID: roomID, snap: snap}:
	default:
		zap.L().Warn("ws.hub_queue_full", zap.String("room_id", roomID))
	}
}

// Subscribe adds a subscriber to a room's fan-out set.
func (h *Hub) Subscribe(roomID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ms, ok := h.rooms[roomID]
	if !ok {
		ms = newMemberSet()
		h.rooms[roomID] = ms
	}
	// The add must happen while the map entry is pinned: a concurrent
	// Unsubscribe of the last other member deletes empty sets, and an add
	// after that delete would land on a set no broadcast can reach.
	ms.add(s)
}

// Unsubscribe removes a subscriber; the room's set is dropped once empty.
func (h *Hub) Unsubscribe(roomID string, s Subscriber) {
	h.mu.Lock()
	ms, ok := h.rooms[roomID]
	if ok {
		ms.remove(s)
		if ms.empty() {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

// SubscribeFunc subscribes a plain callback and returns a handle to cancel it
// with. Used by in-process observers and tests.
func (h *Hub) SubscribeFunc(roomID string, fn func(snap *room.Room)) *Subscription {
	sub := &funcSubscriber{fn: fn}
	h.Subscribe(roomID, sub)
	return &Subscription{hub: h, roomID: roomID, sub: sub}
}

// Subscription is the cancel handle returned by SubscribeFunc.
type Subscription struct {
	hub    *Hub
	roomID string
	sub    Subscriber
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.Unsubscribe(s.roomID, s.sub) })
}

type funcSubscriber struct {
	fn func(snap *room.Room)
}

func (f *funcSubscriber) Deliver(snap *room.Room) error {
	f.fn(snap)
	return nil
}

func (h *Hub) members(roomID string) (*memberSet, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ms, ok := h.rooms[roomID]
	return ms, ok
}
