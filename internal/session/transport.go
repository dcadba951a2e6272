// Package session implements the client side of a meeting: joining a
// room over either transport, driving the offer/answer/candidate
// exchange for a peer connection, and keeping the chat stream.
package session

import (
	"context"
	"encoding/json"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

// Transport is the one semantic contract both delivery mechanisms
// implement: the polling HTTP client and the socket client. The
// coordinator depends only on this interface.
type Transport interface {
	// Join enters the room and starts delivery of events. The transport
	// stops (and its goroutines exit) when ctx is cancelled.
	Join(ctx context.Context, roomID, memberID string) error
	// Leave exits the room. Idempotent.
	Leave(ctx context.Context) error

	// SendSignal emits one opaque signaling envelope to the room.
	SendSignal(ctx context.Context, kind domain.SignalKind, payload json.RawMessage) error
	// SendChat emits one chat message. Delivery of the stored message
	// (and its ack) arrives through Events.
	SendChat(ctx context.Context, msg ChatSend) error
	// ClearChat drops the room's chat history for everyone.
	ClearChat(ctx context.Context) error

	// Events delivers membership changes, incoming signals and chat.
	// Closed when the transport shuts down.
	Events() <-chan Event

	Close() error
}

// ChatSend is the outbound chat shape shared by both transports.
type ChatSend struct {
	Body     string
	Type     domain.MessageType
	FileName string
	FileData string
}

// Event is a sealed union; consumers type-switch on the concrete types
// below.
type Event interface{ isEvent() }

// MembersEvent carries the current member snapshot of the room.
type MembersEvent struct {
	Members []string
}

// SignalEvent carries one incoming envelope. Payload stays opaque.
type SignalEvent struct {
	Kind    domain.SignalKind
	From    string
	Payload json.RawMessage
}

// ChatEvent carries one stored chat message. The same message may arrive
// more than once over the polling transport; consumers dedupe by ID.
type ChatEvent struct {
	Message domain.ChatMessage
}

// AckEvent confirms delivery of a message this member sent.
type AckEvent struct {
	MsgID string
}

// DisconnectEvent reports that the transport lost its connection. It is
// transient for polling (next tick retries) and terminal for the socket.
type DisconnectEvent struct {
	Err error
}

func (MembersEvent) isEvent()    {}
func (SignalEvent) isEvent()     {}
func (ChatEvent) isEvent()       {}
func (AckEvent) isEvent()        {}
func (DisconnectEvent) isEvent() {}
