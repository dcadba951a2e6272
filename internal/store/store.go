// Package store holds the process-wide in-memory state: room membership,
// pending signaling envelopes and chat buffers. Nothing here survives a
// restart; durability is out of scope by design.
package store

import "time"

// Limits collects the retention policy knobs. They bound memory, they are
// not load-bearing for correctness.
type Limits struct {
	SignalRetention time.Duration // envelopes older than this are purged
	SignalQueueMax  int           // per (room, kind) queue capacity
	ChatCap         int           // messages kept per room
	ChatWindow      time.Duration // trailing window returned by List
}

func (l Limits) withDefaults() Limits {
	if l.SignalRetention <= 0 {
		l.SignalRetention = 10 * time.Minute
	}
	if l.SignalQueueMax <= 0 {
		l.SignalQueueMax = 256
	}
	if l.ChatCap <= 0 {
		l.ChatCap = 100
	}
	if l.ChatWindow <= 0 {
		l.ChatWindow = 24 * time.Hour
	}
	return l
}

// Store aggregates the three collections. It is constructed once at
// startup and injected into the transport handlers.
type Store struct {
	Registry *RoomRegistry
	Mailbox  *SignalMailbox
	Chat     *ChatLog
}

func New(limits Limits) *Store {
	limits = limits.withDefaults()
	return &Store{
		Registry: NewRoomRegistry(),
		Mailbox:  NewSignalMailbox(limits.SignalRetention, limits.SignalQueueMax),
		Chat:     NewChatLog(limits.ChatCap, limits.ChatWindow),
	}
}
