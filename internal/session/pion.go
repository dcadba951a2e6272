package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

const defaultSTUNServer = "stun:stun.l.google.com:19302"

// PionFactory builds pion-backed peer connections.
type PionFactory struct {
	// STUNServers overrides the default public STUN server list.
	STUNServers []string
}

var _ PeerFactory = (*PionFactory)(nil)

func (f *PionFactory) NewPeer() (PeerConnection, error) {
	servers := f.STUNServers
	if len(servers) == 0 {
		servers = []string{defaultSTUNServer}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	// A data channel guarantees the offer carries at least one media
	// section, so ICE gathering starts even before tracks are added.
	if _, err := pc.CreateDataChannel("control", nil); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	p := &pionPeer{pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // gathering finished
		}
		p.mu.Lock()
		fn := p.onCandidate
		p.mu.Unlock()
		if fn == nil {
			return
		}
		b, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(b)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.mu.Lock()
		fn := p.onState
		p.mu.Unlock()
		if fn != nil {
			fn(mapPeerState(s))
		}
	})

	return p, nil
}

// pionPeer adapts a pion connection to the engine-neutral interface.
// Trickle ICE: local descriptions are returned as soon as they are set,
// candidates follow through OnCandidate as they are gathered.
type pionPeer struct {
	pc *webrtc.PeerConnection

	mu          sync.Mutex
	onCandidate func(json.RawMessage)
	onState     func(PeerState)

	// candidates that arrived before the remote description
	pending   []webrtc.ICECandidateInit
	remoteSet bool
}

func (p *pionPeer) OnCandidate(fn func(json.RawMessage)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *pionPeer) OnStateChange(fn func(PeerState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *pionPeer) CreateOffer() (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(p.pc.LocalDescription())
}

func (p *pionPeer) CreateAnswer(offer json.RawMessage) (json.RawMessage, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(offer, &sd); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := p.setRemote(sd); err != nil {
		return nil, err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(p.pc.LocalDescription())
}

func (p *pionPeer) AcceptAnswer(answer json.RawMessage) error {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(answer, &sd); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return p.setRemote(sd)
}

// AddCandidate buffers candidates that race ahead of the remote
// description and replays them once it lands.
func (p *pionPeer) AddCandidate(candidate json.RawMessage) error {
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &ci); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, ci)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.pc.AddICECandidate(ci)
}

func (p *pionPeer) setRemote(sd webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ci := range pending {
		if err := p.pc.AddICECandidate(ci); err != nil {
			return fmt.Errorf("add buffered candidate: %w", err)
		}
	}
	return nil
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}

func mapPeerState(s webrtc.PeerConnectionState) PeerState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return PeerNew
	case webrtc.PeerConnectionStateConnecting:
		return PeerConnecting
	case webrtc.PeerConnectionStateConnected:
		return PeerConnected
	case webrtc.PeerConnectionStateDisconnected:
		return PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return PeerFailed
	case webrtc.PeerConnectionStateClosed:
		return PeerClosed
	default:
		return PeerNew
	}
}
