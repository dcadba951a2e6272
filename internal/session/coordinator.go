package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

// SessionState is the coordinator's lifecycle position. Transitions only
// move forward through Join and Leave; call setup cycles between Joined,
// Negotiating and Connected.
type SessionState int

const (
	StateIdle SessionState = iota
	StateJoining
	StateJoined
	StateNegotiating
	StateConnected
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrNotJoined      = errors.New("not joined to a room")
	ErrAlreadyJoined  = errors.New("already joined")
	ErrSessionEnded   = errors.New("session ended")
	ErrCallInProgress = errors.New("call already in progress")
)

// Hooks are UI-facing callbacks. All of them are optional and are
// invoked without the coordinator's lock held, from the event loop
// goroutine or the caller's goroutine.
type Hooks struct {
	OnStateChange func(SessionState)
	OnMembers     func([]string)
	OnChat        func(domain.ChatMessage)
	OnAck         func(msgID string)
	OnError       func(error)
}

// Coordinator drives one member's meeting session: room membership over
// a Transport, offer/answer/candidate exchange through a PeerFactory,
// and the chat stream. It is transport-agnostic; the same state machine
// runs over polling and over the socket.
type Coordinator struct {
	transport Transport
	peers     PeerFactory
	media     MediaDevices
	hooks     Hooks
	log       *slog.Logger

	mu        sync.Mutex
	state     SessionState
	roomID    string
	memberID  string
	peer      PeerConnection
	mediaHeld bool
	members   []string
	chat      []domain.ChatMessage
	seenChat  map[string]struct{}

	// sessionCtx outlives any single call's request context; candidate
	// delivery keeps flowing for the whole session.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	loopStarted bool
	loopDone    chan struct{}
}

func NewCoordinator(t Transport, peers PeerFactory, media MediaDevices, hooks Hooks, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		transport: t,
		peers:     peers,
		media:     media,
		hooks:     hooks,
		log:       log,
		state:     StateIdle,
		seenChat:  make(map[string]struct{}),
		loopDone:  make(chan struct{}),
	}
}

func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Coordinator) ChatHistory() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.chat))
	copy(out, c.chat)
	return out
}

// Join enters the room and starts consuming transport events. The
// session reaches StateJoined when the first member snapshot arrives.
func (c *Coordinator) Join(ctx context.Context, roomID, memberID string) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateEnded:
		c.mu.Unlock()
		return ErrSessionEnded
	default:
		c.mu.Unlock()
		return ErrAlreadyJoined
	}
	c.state = StateJoining
	c.roomID = roomID
	c.memberID = memberID
	c.mu.Unlock()
	c.notifyState(StateJoining)

	if err := c.transport.Join(ctx, roomID, memberID); err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	c.mu.Lock()
	c.loopStarted = true
	c.sessionCtx, c.sessionCancel = context.WithCancel(context.Background())
	c.mu.Unlock()
	go c.eventLoop()
	return nil
}

// Leave tears down any active call, exits the room and ends the
// session. The coordinator is not reusable afterwards.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.endCall(false)

	c.mu.Lock()
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.mu.Unlock()

	err := c.transport.Leave(ctx)
	c.setState(StateEnded)
	if cerr := c.transport.Close(); cerr != nil && err == nil {
		err = cerr
	}

	c.mu.Lock()
	started := c.loopStarted
	c.mu.Unlock()
	if started {
		<-c.loopDone
	}
	return err
}

// StartCall acquires media, builds a peer connection and sends the
// offer. Media failures leave the session in StateJoined; the caller
// may retry after fixing the device problem.
func (c *Coordinator) StartCall(ctx context.Context) error {
	// Reserve the negotiation before any blocking call. The offer send
	// can take seconds over the polling transport; a remote offer that
	// arrives meanwhile must see the reservation and back off, or two
	// peers get built and one leaks together with its media acquisition.
	c.mu.Lock()
	if c.state != StateJoined {
		st := c.state
		c.mu.Unlock()
		if st == StateNegotiating || st == StateConnected {
			return ErrCallInProgress
		}
		return ErrNotJoined
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	if err := c.media.Acquire(); err != nil {
		c.abortNegotiation()
		return fmt.Errorf("acquire media: %w", err)
	}

	peer, err := c.newWiredPeer()
	if err != nil {
		c.media.Release()
		c.abortNegotiation()
		return err
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		_ = peer.Close()
		c.media.Release()
		c.abortNegotiation()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.transport.SendSignal(ctx, domain.SignalOffer, offer); err != nil {
		_ = peer.Close()
		c.media.Release()
		c.abortNegotiation()
		return fmt.Errorf("send offer: %w", err)
	}

	c.mu.Lock()
	if c.state != StateNegotiating {
		// session ended while the send was in flight
		c.mu.Unlock()
		_ = peer.Close()
		c.media.Release()
		return ErrSessionEnded
	}
	c.peer = peer
	c.mediaHeld = true
	c.mu.Unlock()
	c.notifyState(StateNegotiating)
	return nil
}

// abortNegotiation releases a reservation made by StartCall or
// handleOffer that failed before a peer was published.
func (c *Coordinator) abortNegotiation() {
	c.mu.Lock()
	if c.state == StateNegotiating && c.peer == nil {
		c.state = StateJoined
	}
	c.mu.Unlock()
}

// HangUp ends the active call but stays in the room. The clear signal
// purges any offer or candidates still parked for polling peers.
func (c *Coordinator) HangUp(ctx context.Context) error {
	c.mu.Lock()
	if c.peer == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.endCall(true)
	if err := c.transport.SendSignal(ctx, domain.SignalClear, nil); err != nil {
		c.log.Warn("send clear failed", "room", c.roomID, "err", err)
	}
	return nil
}

func (c *Coordinator) SendChat(ctx context.Context, msg ChatSend) error {
	c.mu.Lock()
	joined := c.state >= StateJoined && c.state < StateEnded
	c.mu.Unlock()
	if !joined {
		return ErrNotJoined
	}
	return c.transport.SendChat(ctx, msg)
}

func (c *Coordinator) ClearChat(ctx context.Context) error {
	if err := c.transport.ClearChat(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.chat = nil
	c.seenChat = make(map[string]struct{})
	c.mu.Unlock()
	return nil
}

// --- event handling ---

func (c *Coordinator) eventLoop() {
	defer close(c.loopDone)

	for ev := range c.transport.Events() {
		switch e := ev.(type) {
		case MembersEvent:
			c.handleMembers(e)
		case SignalEvent:
			c.handleSignal(e)
		case ChatEvent:
			c.handleChat(e)
		case AckEvent:
			if c.hooks.OnAck != nil {
				c.hooks.OnAck(e.MsgID)
			}
		case DisconnectEvent:
			c.handleDisconnect(e)
		}
	}
}

func (c *Coordinator) handleMembers(e MembersEvent) {
	c.mu.Lock()
	c.members = e.Members
	becameJoined := c.state == StateJoining
	if becameJoined {
		c.state = StateJoined
	}
	c.mu.Unlock()

	if becameJoined {
		c.notifyState(StateJoined)
	}
	if c.hooks.OnMembers != nil {
		c.hooks.OnMembers(e.Members)
	}
}

func (c *Coordinator) handleSignal(e SignalEvent) {
	switch e.Kind {
	case domain.SignalOffer:
		c.handleOffer(e)
	case domain.SignalAnswer:
		c.mu.Lock()
		peer := c.peer
		c.mu.Unlock()
		if peer == nil {
			// late answer after a hang-up; harmless
			c.log.Debug("answer with no active peer", "from", e.From)
			return
		}
		if err := peer.AcceptAnswer(e.Payload); err != nil {
			c.fail(fmt.Errorf("accept answer from %s: %w", e.From, err))
		}
	case domain.SignalCandidate:
		c.mu.Lock()
		peer := c.peer
		c.mu.Unlock()
		if peer == nil {
			c.log.Debug("candidate with no active peer", "from", e.From)
			return
		}
		if err := peer.AddCandidate(e.Payload); err != nil {
			c.log.Warn("add candidate failed", "from", e.From, "err", err)
		}
	}
}

// handleOffer is the callee path: acquire media, answer, trickle
// candidates back.
func (c *Coordinator) handleOffer(e SignalEvent) {
	// The state check doubles as the glare guard: a local StartCall
	// reserves StateNegotiating under the same lock before it blocks,
	// so an offer racing the reservation is turned away here and only
	// one peer is ever built.
	c.mu.Lock()
	if c.state != StateJoined || c.peer != nil {
		c.mu.Unlock()
		c.log.Debug("offer ignored, negotiation already active", "from", e.From)
		return
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	if err := c.media.Acquire(); err != nil {
		c.abortNegotiation()
		c.fail(fmt.Errorf("acquire media for incoming offer: %w", err))
		return
	}

	peer, err := c.newWiredPeer()
	if err != nil {
		c.media.Release()
		c.abortNegotiation()
		c.fail(err)
		return
	}

	answer, err := peer.CreateAnswer(e.Payload)
	if err != nil {
		_ = peer.Close()
		c.media.Release()
		c.abortNegotiation()
		c.fail(fmt.Errorf("create answer for %s: %w", e.From, err))
		return
	}
	if err := c.transport.SendSignal(c.sessionCtx, domain.SignalAnswer, answer); err != nil {
		_ = peer.Close()
		c.media.Release()
		c.abortNegotiation()
		c.fail(fmt.Errorf("send answer: %w", err))
		return
	}

	c.mu.Lock()
	if c.state != StateNegotiating {
		c.mu.Unlock()
		_ = peer.Close()
		c.media.Release()
		return
	}
	c.peer = peer
	c.mediaHeld = true
	c.mu.Unlock()
	c.notifyState(StateNegotiating)
}

func (c *Coordinator) handleChat(e ChatEvent) {
	c.mu.Lock()
	if _, dup := c.seenChat[e.Message.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seenChat[e.Message.ID] = struct{}{}
	c.chat = append(c.chat, e.Message)
	c.mu.Unlock()

	if c.hooks.OnChat != nil {
		c.hooks.OnChat(e.Message)
	}
}

func (c *Coordinator) handleDisconnect(e DisconnectEvent) {
	c.log.Warn("transport disconnected", "room", c.roomID, "err", e.Err)
	c.mu.Lock()
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.mu.Unlock()
	c.endCall(true)
	c.setState(StateEnded)
	if c.hooks.OnError != nil {
		c.hooks.OnError(e.Err)
	}
}

// newWiredPeer builds a peer with its callbacks attached. Candidates
// flow out through the transport as they are gathered, under the
// session context: they must keep sending long after the request
// context of the call that created the peer is done.
func (c *Coordinator) newWiredPeer() (PeerConnection, error) {
	peer, err := c.peers.NewPeer()
	if err != nil {
		return nil, fmt.Errorf("new peer: %w", err)
	}

	peer.OnCandidate(func(candidate json.RawMessage) {
		if err := c.transport.SendSignal(c.sessionCtx, domain.SignalCandidate, candidate); err != nil {
			c.log.Warn("send candidate failed", "err", err)
		}
	})
	peer.OnStateChange(func(s PeerState) {
		c.handlePeerState(s)
	})
	return peer, nil
}

func (c *Coordinator) handlePeerState(s PeerState) {
	switch s {
	case PeerConnected:
		c.mu.Lock()
		transition := c.state == StateNegotiating
		if transition {
			c.state = StateConnected
		}
		c.mu.Unlock()
		if transition {
			c.notifyState(StateConnected)
		}
	case PeerFailed:
		c.log.Warn("peer connection failed", "room", c.roomID)
		c.endCall(true)
		c.fail(errors.New("peer connection failed"))
	case PeerDisconnected:
		// often transient while ICE restarts; do not tear down yet
		c.log.Debug("peer connection disconnected", "room", c.roomID)
	}
}

// endCall closes the active peer and releases media. With
// backToJoined it returns the session to StateJoined, the resting state
// between calls.
func (c *Coordinator) endCall(backToJoined bool) {
	c.mu.Lock()
	peer := c.peer
	c.peer = nil
	held := c.mediaHeld
	c.mediaHeld = false
	inCall := c.state == StateNegotiating || c.state == StateConnected
	if backToJoined && inCall {
		c.state = StateJoined
	}
	c.mu.Unlock()

	if peer != nil {
		if err := peer.Close(); err != nil {
			c.log.Debug("peer close failed", "err", err)
		}
	}
	if held {
		c.media.Release()
	}
	if backToJoined && inCall {
		c.notifyState(StateJoined)
	}
}

func (c *Coordinator) setState(s SessionState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.notifyState(s)
	}
}

func (c *Coordinator) notifyState(s SessionState) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(s)
	}
}

func (c *Coordinator) fail(err error) {
	c.log.Error("session error", "room", c.roomID, "err", err)
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}
