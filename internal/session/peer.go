package session

import (
	"encoding/json"
	"errors"
)

// PeerState mirrors the connection lifecycle of the underlying peer
// connection in transport-neutral terms.
type PeerState int

const (
	PeerNew PeerState = iota
	PeerConnecting
	PeerConnected
	PeerDisconnected
	PeerFailed
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerConnection hides the WebRTC engine behind opaque JSON blobs. The
// coordinator never parses SDP or candidate internals; it only moves
// them between the engine and the transport.
type PeerConnection interface {
	// CreateOffer produces a local offer and installs it as the local
	// description. The returned blob goes to the remote side verbatim.
	CreateOffer() (json.RawMessage, error)
	// CreateAnswer installs the remote offer and produces an answer.
	CreateAnswer(offer json.RawMessage) (json.RawMessage, error)
	// AcceptAnswer installs the remote answer on an offering peer.
	AcceptAnswer(answer json.RawMessage) error
	// AddCandidate feeds one remote ICE candidate into the engine.
	// Candidates may arrive before or after the answer.
	AddCandidate(candidate json.RawMessage) error

	// OnCandidate registers the callback for locally gathered candidates.
	// Must be set before CreateOffer or CreateAnswer.
	OnCandidate(fn func(candidate json.RawMessage))
	// OnStateChange registers the callback for lifecycle transitions.
	OnStateChange(fn func(state PeerState))

	Close() error
}

// PeerFactory builds one PeerConnection per call attempt.
type PeerFactory interface {
	NewPeer() (PeerConnection, error)
}

// Media acquisition failures the UI layer distinguishes. Every one of
// them is recoverable: the session stays joined and a later attempt may
// succeed.
var (
	ErrMediaPermissionDenied = errors.New("media permission denied")
	ErrMediaDeviceBusy       = errors.New("media device busy")
	ErrMediaDeviceNotFound   = errors.New("media device not found")
)

// MediaDevices abstracts camera and microphone acquisition. Acquire is
// called before any offer goes out; Release after the call ends.
type MediaDevices interface {
	Acquire() error
	Release()
}
