package ws

import (
	"encoding/json"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

// Event types carried over the socket transport.
const (
	TypeState       = "state"       // member snapshot for the joining peer
	TypePeerJoined  = "peer_joined" // a member joined the room
	TypePeerLeft    = "peer_left"   // a member left the room
	TypeOffer       = "offer"       // SDP offer, relayed verbatim
	TypeAnswer      = "answer"      // SDP answer, relayed verbatim
	TypeCandidate   = "candidate"   // ICE candidate, relayed verbatim
	TypeClear       = "clear"       // purge the sender's pending mailbox state
	TypeChat        = "chat"         // chat message
	TypeChatAck     = "chat_ack"     // delivery ack to the sender only
	TypeChatClear   = "chat_clear"   // request to drop the room's history
	TypeChatCleared = "chat_cleared" // history dropped, notify everyone
	TypeError       = "error"       // client error on an inbound event
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type StatePayload struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

type PeerEventPayload struct {
	RoomID   string `json:"room_id"`
	MemberID string `json:"member_id"`
}

// SignalPayload wraps an opaque SDP or ICE blob. Data is never inspected
// here; the browsers on both ends interpret it.
type SignalPayload struct {
	RoomID string          `json:"room_id"`
	From   string          `json:"from,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// ChatSendPayload is the inbound chat shape. The broadcast carries the
// stored domain.ChatMessage so push and pull peers see identical fields.
type ChatSendPayload struct {
	Body     string `json:"body"`
	Type     string `json:"type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

type ChatBroadcastPayload struct {
	Message domain.ChatMessage `json:"message"`
}

// ChatAckPayload lets the sender clear its pending optimistic message.
type ChatAckPayload struct {
	MsgID string `json:"msg_id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
