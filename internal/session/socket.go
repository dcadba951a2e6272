package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/transport/ws"
)

const (
	socketWriteWait = 10 * time.Second
	socketPongWait  = 60 * time.Second
	socketPingEvery = (socketPongWait * 9) / 10
)

// SocketConfig configures the push transport client.
type SocketConfig struct {
	// BaseURL is the ws:// or wss:// root of the server, no trailing slash.
	BaseURL string
	Dialer  *websocket.Dialer
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	return c
}

// SocketTransport implements Transport over one long-lived socket. The
// server pushes everything; the client never polls. A broken socket is
// terminal: the coordinator gets a DisconnectEvent and decides whether
// to rejoin.
type SocketTransport struct {
	cfg    SocketConfig
	events chan Event
	send   chan ws.Message

	mu       sync.Mutex
	conn     *websocket.Conn
	memberID string
	members  map[string]struct{}
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

var _ Transport = (*SocketTransport)(nil)

func NewSocketTransport(cfg SocketConfig) *SocketTransport {
	return &SocketTransport{
		cfg:     cfg.withDefaults(),
		events:  make(chan Event, 64),
		send:    make(chan ws.Message, 32),
		members: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
}

func (t *SocketTransport) Events() <-chan Event { return t.events }

func (t *SocketTransport) Join(ctx context.Context, roomID, memberID string) error {
	u := fmt.Sprintf("%s/ws/rooms/%s?member=%s",
		t.cfg.BaseURL, url.PathEscape(roomID), url.QueryEscape(memberID))

	conn, _, err := t.cfg.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.memberID = memberID
	t.mu.Unlock()

	go t.readPump(conn)
	go t.writePump(conn)
	return nil
}

// Leave closes the socket; the server treats the drop as leaving the
// room and tells the remaining peers.
func (t *SocketTransport) Leave(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(socketWriteWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (t *SocketTransport) SendSignal(ctx context.Context, kind domain.SignalKind, payload json.RawMessage) error {
	if kind == domain.SignalClear {
		return t.enqueue(ctx, ws.Message{Type: ws.TypeClear})
	}
	return t.enqueue(ctx, ws.Message{
		Type:    string(kind),
		Payload: ws.SignalPayload{Data: payload},
	})
}

func (t *SocketTransport) SendChat(ctx context.Context, msg ChatSend) error {
	return t.enqueue(ctx, ws.Message{
		Type: ws.TypeChat,
		Payload: ws.ChatSendPayload{
			Body:     msg.Body,
			Type:     string(msg.Type),
			FileName: msg.FileName,
			FileData: msg.FileData,
		},
	})
}

func (t *SocketTransport) ClearChat(ctx context.Context) error {
	return t.enqueue(ctx, ws.Message{Type: ws.TypeChatClear})
}

func (t *SocketTransport) Close() error {
	err := t.Leave(context.Background())
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.events)
	})
	return err
}

func (t *SocketTransport) enqueue(ctx context.Context, msg ws.Message) error {
	select {
	case t.send <- msg:
		return nil
	case <-t.done:
		return fmt.Errorf("socket transport closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- pumps ---

func (t *SocketTransport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(socketPingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-t.send:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("socket write failed", "type", msg.Type, "err", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *SocketTransport) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(10 << 20)
	conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(socketPongWait))
		return nil
	})

	for {
		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.mu.Lock()
			deliberate := t.conn == nil
			t.mu.Unlock()
			if !deliberate {
				t.emit(DisconnectEvent{Err: err})
			}
			return
		}
		t.dispatch(frame.Type, frame.Payload)
	}
}

func (t *SocketTransport) dispatch(typ string, payload json.RawMessage) {
	switch typ {
	case ws.TypeState:
		var p ws.StatePayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		t.mu.Lock()
		t.members = make(map[string]struct{}, len(p.Members))
		for _, m := range p.Members {
			t.members[m] = struct{}{}
		}
		t.mu.Unlock()
		t.emit(MembersEvent{Members: t.memberList()})

	case ws.TypePeerJoined, ws.TypePeerLeft:
		var p ws.PeerEventPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		t.mu.Lock()
		if typ == ws.TypePeerJoined {
			t.members[p.MemberID] = struct{}{}
		} else {
			delete(t.members, p.MemberID)
		}
		t.mu.Unlock()
		t.emit(MembersEvent{Members: t.memberList()})

	case ws.TypeOffer, ws.TypeAnswer, ws.TypeCandidate:
		var p ws.SignalPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		kind, err := domain.ParseSignalKind(typ, false)
		if err != nil {
			return
		}
		t.emit(SignalEvent{Kind: kind, From: p.From, Payload: p.Data})

	case ws.TypeChat:
		var p ws.ChatBroadcastPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		t.emit(ChatEvent{Message: p.Message})

	case ws.TypeChatAck:
		var p ws.ChatAckPayload
		if json.Unmarshal(payload, &p) != nil {
			return
		}
		t.emit(AckEvent{MsgID: p.MsgID})

	case ws.TypeChatCleared:
		// history reset by another peer; the next History fetch is empty

	case ws.TypeError:
		var p ws.ErrorPayload
		_ = json.Unmarshal(payload, &p)
		slog.Warn("server rejected socket event", "err", p.Error)
	}
}

func (t *SocketTransport) memberList() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.members))
	for m := range t.members {
		out = append(out, m)
	}
	t.mu.Unlock()
	sort.Strings(out)
	return out
}

// emit runs under the mutex so Close cannot slip a channel close in
// between the closed check and the send.
func (t *SocketTransport) emit(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	default:
		slog.Warn("socket transport event dropped")
	}
}
