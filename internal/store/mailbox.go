package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

// SignalMailbox keeps per-room queues of pending signaling envelopes for
// the polling transport. It deliberately does not consult the room
// registry: depositing into a room nobody has joined yet must work, so a
// join race cannot drop a legitimate offer.
//
// Expired envelopes are purged inline on every deposit and fetch; there
// is no background sweep to coordinate.
type SignalMailbox struct {
	mu        sync.Mutex
	rooms     map[string]*roomSignals
	retention time.Duration
	queueMax  int

	now func() time.Time
}

type roomSignals struct {
	queues map[domain.SignalKind][]domain.SignalEnvelope
}

func NewSignalMailbox(retention time.Duration, queueMax int) *SignalMailbox {
	return &SignalMailbox{
		rooms:     make(map[string]*roomSignals),
		retention: retention,
		queueMax:  queueMax,
		now:       time.Now,
	}
}

// Deposit appends a timestamped envelope to the (room, kind) queue.
// A clear kind instead removes every pending envelope originated by
// fromID in that room, whatever its kind.
func (m *SignalMailbox) Deposit(roomID string, kind domain.SignalKind, fromID string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == domain.SignalClear {
		if rs, ok := m.rooms[roomID]; ok {
			for k, q := range rs.queues {
				rs.queues[k] = dropFrom(q, fromID)
			}
			m.gcLocked(roomID)
		}
		return nil
	}

	rs, ok := m.rooms[roomID]
	if !ok {
		rs = &roomSignals{queues: make(map[domain.SignalKind][]domain.SignalEnvelope)}
		m.rooms[roomID] = rs
	}

	m.expireLocked(rs)
	if len(rs.queues[kind]) >= m.queueMax {
		return domain.ErrMailboxFull
	}

	rs.queues[kind] = append(rs.queues[kind], domain.SignalEnvelope{
		RoomID:    roomID,
		From:      fromID,
		Payload:   payload,
		CreatedAt: m.now(),
	})
	return nil
}

// Fetch returns the pending envelopes of one kind, in insertion order,
// excluding those the requester deposited itself. Envelopes stay queued
// until they expire; the polling consumer deduplicates.
func (m *SignalMailbox) Fetch(roomID string, kind domain.SignalKind, requesterID string) []domain.SignalEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.rooms[roomID]
	if !ok {
		return []domain.SignalEnvelope{}
	}

	m.expireLocked(rs)

	out := make([]domain.SignalEnvelope, 0, len(rs.queues[kind]))
	for _, env := range rs.queues[kind] {
		if env.From != requesterID {
			out = append(out, env)
		}
	}
	m.gcLocked(roomID)
	return out
}

func (m *SignalMailbox) expireLocked(rs *roomSignals) {
	cutoff := m.now().Add(-m.retention)
	for k, q := range rs.queues {
		// queues are in insertion order, so find the first live envelope
		i := 0
		for i < len(q) && q[i].CreatedAt.Before(cutoff) {
			i++
		}
		if i > 0 {
			rs.queues[k] = append(q[:0:0], q[i:]...)
		}
	}
}

func (m *SignalMailbox) gcLocked(roomID string) {
	rs, ok := m.rooms[roomID]
	if !ok {
		return
	}
	for _, q := range rs.queues {
		if len(q) > 0 {
			return
		}
	}
	delete(m.rooms, roomID)
}

func dropFrom(q []domain.SignalEnvelope, fromID string) []domain.SignalEnvelope {
	out := q[:0]
	for _, env := range q {
		if env.From != fromID {
			out = append(out, env)
		}
	}
	return out
}
