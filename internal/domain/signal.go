package domain

import (
	"encoding/json"
	"time"
)

// SignalKind classifies a signaling envelope. Clear is a control message:
// it purges every pending envelope deposited by its sender.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
	SignalClear     SignalKind = "clear"
)

// ParseSignalKind validates a wire value. Clear is accepted only where the
// caller says so, since fetches never target clear envelopes.
func ParseSignalKind(s string, allowClear bool) (SignalKind, error) {
	switch SignalKind(s) {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return SignalKind(s), nil
	case SignalClear:
		if allowClear {
			return SignalClear, nil
		}
	}
	return "", ErrInvalidSignal
}

// SignalEnvelope carries one opaque signaling payload (an SDP blob or an
// ICE candidate descriptor). The payload is never interpreted here.
type SignalEnvelope struct {
	RoomID    string          `json:"room_id"`
	From      string          `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
