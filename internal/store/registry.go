package store

import (
	"sort"
	"sync"
)

// RoomRegistry tracks which member ids belong to which room. Rooms are
// created implicitly on first join and dropped when the last member
// leaves. A member is in at most one room; joining another room moves it.
type RoomRegistry struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]struct{}
	memberRoom map[string]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:      make(map[string]map[string]struct{}),
		memberRoom: make(map[string]string),
	}
}

// Join is idempotent: re-joining the same room is a no-op.
func (r *RoomRegistry) Join(roomID, memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.memberRoom[memberID]; ok {
		if prev == roomID {
			return
		}
		r.removeLocked(prev, memberID)
	}

	ms, ok := r.rooms[roomID]
	if !ok {
		ms = make(map[string]struct{})
		r.rooms[roomID] = ms
	}
	ms[memberID] = struct{}{}
	r.memberRoom[memberID] = roomID
}

// Leave is idempotent: an unknown member is a no-op.
func (r *RoomRegistry) Leave(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.memberRoom[memberID]
	if !ok {
		return
	}
	r.removeLocked(roomID, memberID)
}

func (r *RoomRegistry) removeLocked(roomID, memberID string) {
	delete(r.memberRoom, memberID)
	if ms, ok := r.rooms[roomID]; ok {
		delete(ms, memberID)
		if len(ms) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// ListMembers returns a sorted snapshot. An unknown room yields an empty
// slice, never an error.
func (r *RoomRegistry) ListMembers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms := r.rooms[roomID]
	out := make([]string, 0, len(ms))
	for m := range ms {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Rooms returns a snapshot of every room and its members.
func (r *RoomRegistry) Rooms() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.rooms))
	for roomID, ms := range r.rooms {
		members := make([]string, 0, len(ms))
		for m := range ms {
			members = append(members, m)
		}
		sort.Strings(members)
		out[roomID] = members
	}
	return out
}
