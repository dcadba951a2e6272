package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type MemberSvc interface {
	Join(roomID, memberID string) ([]string, error)
	Leave(roomID, memberID string) error
	List(roomID string) ([]string, error)
}

type SignalSvc interface {
	Deposit(roomID, memberID, kind string, payload json.RawMessage) error
}

type ChatSvc interface {
	Send(roomID, senderID, body, msgType, fileName, fileData string) (domain.ChatMessage, error)
	Clear(roomID string) error
}

// Server is the push transport: members of a room hold one socket each,
// and signaling envelopes are relayed synchronously to the connected
// peers instead of being parked in the mailbox.
type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	memberSvc MemberSvc
	signalSvc SignalSvc
	chatSvc   ChatSvc

	pingEvery time.Duration
}

func NewServer(hub *Hub, member MemberSvc, signal SignalSvc, chat ChatSvc) *Server {
	return &Server{
		hub:       hub,
		memberSvc: member,
		signalSvc: signal,
		chatSvc:   chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/rooms/{id}?member=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	memberID := strings.TrimSpace(r.URL.Query().Get("member"))
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}
	if memberID == "" {
		http.Error(w, "missing member id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	members, err := s.memberSvc.Join(roomID, memberID)
	if err != nil {
		_ = conn.WriteJSON(Message{Type: TypeError, Payload: ErrorPayload{Error: err.Error()}})
		_ = conn.Close()
		return
	}

	c := newWsConn(conn, roomID, memberID)
	s.hub.Add(c)
	metrics.SocketConnections.Inc()

	// snapshot for the new peer, join event for the rest
	if err := c.Send(Message{
		Type:    TypeState,
		Payload: StatePayload{RoomID: roomID, Members: members},
	}); err != nil {
		slog.Warn("ws send initial state failed", "room", roomID, "member", memberID, "err", err)
	}
	s.hub.BroadcastExcept(roomID, memberID, Message{
		Type:    TypePeerJoined,
		Payload: PeerEventPayload{RoomID: roomID, MemberID: memberID},
	})

	go s.writeLoop(r.Context(), c)
	s.readLoop(c)

	// connection gone: leave immediately, no grace period
	s.hub.Remove(c)
	metrics.SocketConnections.Dec()

	if err := s.memberSvc.Leave(roomID, memberID); err != nil {
		slog.Debug("ws leave failed", "room", roomID, "member", memberID, "err", err)
	}
	s.hub.Broadcast(roomID, Message{
		Type:    TypePeerLeft,
		Payload: PeerEventPayload{RoomID: roomID, MemberID: memberID},
	})

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", roomID, "member", memberID, "err", err)
	}
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(10 << 20) // file messages ride inline
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeOffer, TypeAnswer, TypeCandidate:
			s.relaySignal(c, msg.Type, msg.Payload)
		case TypeClear:
			// A socket peer may have deposited envelopes while on the
			// polling transport; purge them too.
			if err := s.signalSvc.Deposit(c.roomID, c.memberID, string(domain.SignalClear), nil); err != nil {
				slog.Warn("ws clear failed", "room", c.roomID, "member", c.memberID, "err", err)
			}
		case TypeChat:
			s.handleChat(c, msg.Payload)
		case TypeChatClear:
			if err := s.chatSvc.Clear(c.roomID); err != nil {
				_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: err.Error()}})
				continue
			}
			s.hub.Broadcast(c.roomID, Message{
				Type:    TypeChatCleared,
				Payload: PeerEventPayload{RoomID: c.roomID, MemberID: c.memberID},
			})
		default:
			// ignore
		}
	}
}

// relaySignal forwards an opaque envelope to everyone else in the room.
// Delivery is synchronous to the connected peers; nothing is queued.
func (s *Server) relaySignal(c *wsConn, kind string, payload interface{}) {
	var p SignalPayload
	if decode(payload, &p) != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: "invalid signal payload"}})
		return
	}
	p.RoomID = c.roomID
	p.From = c.memberID

	s.hub.BroadcastExcept(c.roomID, c.memberID, Message{Type: kind, Payload: p})
	metrics.SignalsRelayed.WithLabelValues(kind).Inc()
}

func (s *Server) handleChat(c *wsConn, payload interface{}) {
	var p ChatSendPayload
	if decode(payload, &p) != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: "invalid chat payload"}})
		return
	}

	stored, err := s.chatSvc.Send(c.roomID, c.memberID, p.Body, p.Type, p.FileName, p.FileData)
	if err != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: err.Error()}})
		return
	}

	// One broadcast to everyone, sender included, plus a light ack so the
	// sender can drop its pending optimistic copy.
	s.hub.Broadcast(c.roomID, Message{Type: TypeChat, Payload: ChatBroadcastPayload{Message: stored}})
	_ = c.Send(Message{Type: TypeChatAck, Payload: ChatAckPayload{MsgID: stored.ID}})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn     *websocket.Conn
	roomID   string
	memberID string
	sendMu   chan struct{}
	closed   chan struct{}
}

func newWsConn(c *websocket.Conn, roomID, memberID string) *wsConn {
	return &wsConn{
		conn:     c,
		roomID:   roomID,
		memberID: memberID,
		sendMu:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) MemberID() string { return c.memberID }
func (c *wsConn) RoomID() string   { return c.roomID }
