package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	httpx "github.com/Magraj71/NewMeetSUM/internal/transport/http"
)

const (
	defaultSignalInterval = 2 * time.Second
	defaultStateInterval  = 3 * time.Second
	defaultHTTPTimeout    = 10 * time.Second
)

// ClientError is a 4xx outcome from the server: the request was wrong and
// retrying it unchanged will not help.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Status, e.Message)
}

// PollConfig configures the pull transport client.
type PollConfig struct {
	BaseURL        string
	Client         *http.Client
	SignalInterval time.Duration
	StateInterval  time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.SignalInterval <= 0 {
		c.SignalInterval = defaultSignalInterval
	}
	if c.StateInterval <= 0 {
		c.StateInterval = defaultStateInterval
	}
	return c
}

// PollTransport implements Transport over the stateless request/response
// API. It simulates push behavior by re-fetching on fixed intervals and
// deduplicating: at-least-once delivery, idempotent consumer.
type PollTransport struct {
	cfg    PollConfig
	events chan Event

	mu       sync.Mutex
	roomID   string
	memberID string
	cancel   context.CancelFunc

	// Dedupe sets record when each key was first seen. Keys that drop
	// out of the server's response (expired envelopes, cleared chat)
	// cannot recur, so they are pruned once old enough that no fetch
	// started before the key appeared can still be in flight.
	seenSignals map[string]time.Time
	seenChat    map[string]time.Time
	lastMembers string
	closed      bool

	closeOnce sync.Once
}

var _ Transport = (*PollTransport)(nil)

func NewPollTransport(cfg PollConfig) *PollTransport {
	return &PollTransport{
		cfg:         cfg.withDefaults(),
		events:      make(chan Event, 64),
		seenSignals: make(map[string]time.Time),
		seenChat:    make(map[string]time.Time),
	}
}

func (t *PollTransport) Events() <-chan Event { return t.events }

// Join enters the room and starts the polling loops. The loops stop the
// instant ctx is cancelled; no interval may keep firing against a stale
// room id.
func (t *PollTransport) Join(ctx context.Context, roomID, memberID string) error {
	var resp httpx.MembersResponse
	err := t.do(ctx, http.MethodPost, t.roomURL(roomID, "join"),
		httpx.JoinRequest{MemberID: memberID}, &resp)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.roomID = roomID
	t.memberID = memberID
	t.cancel = cancel
	t.mu.Unlock()

	t.emit(MembersEvent{Members: resp.Members})
	t.rememberMembers(resp.Members)

	go t.loop(loopCtx)
	return nil
}

func (t *PollTransport) Leave(ctx context.Context) error {
	t.mu.Lock()
	roomID, memberID := t.roomID, t.memberID
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if roomID == "" {
		return nil
	}

	var resp httpx.StatusResponse
	return t.do(ctx, http.MethodPost, t.roomURL(roomID, "leave"),
		httpx.LeaveRequest{MemberID: memberID}, &resp)
}

func (t *PollTransport) SendSignal(ctx context.Context, kind domain.SignalKind, payload json.RawMessage) error {
	t.mu.Lock()
	roomID, memberID := t.roomID, t.memberID
	t.mu.Unlock()

	var resp httpx.StatusResponse
	return t.do(ctx, http.MethodPost, t.roomURL(roomID, "signals"),
		httpx.SendSignalRequest{MemberID: memberID, Type: string(kind), Payload: payload}, &resp)
}

func (t *PollTransport) SendChat(ctx context.Context, msg ChatSend) error {
	t.mu.Lock()
	roomID, memberID := t.roomID, t.memberID
	t.mu.Unlock()

	var resp httpx.SendChatResponse
	err := t.do(ctx, http.MethodPost, t.roomURL(roomID, "chat"), httpx.SendChatRequest{
		SenderID: memberID,
		Body:     msg.Body,
		Type:     string(msg.Type),
		FileName: msg.FileName,
		FileData: msg.FileData,
	}, &resp)
	if err != nil {
		return err
	}

	// Our own message will also show up in later fetches; mark it seen
	// and surface it once, with its ack, right away.
	t.mu.Lock()
	t.seenChat[resp.MessageID] = time.Now()
	t.mu.Unlock()
	t.emit(ChatEvent{Message: resp.Message})
	t.emit(AckEvent{MsgID: resp.MessageID})
	return nil
}

func (t *PollTransport) ClearChat(ctx context.Context) error {
	t.mu.Lock()
	roomID := t.roomID
	t.mu.Unlock()

	var resp httpx.StatusResponse
	return t.do(ctx, http.MethodDelete, t.roomURL(roomID, "chat"), nil, &resp)
}

func (t *PollTransport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.events)
	})
	return nil
}

// --- polling loops ---

func (t *PollTransport) loop(ctx context.Context) {
	signalTick := time.NewTicker(t.cfg.SignalInterval)
	stateTick := time.NewTicker(t.cfg.StateInterval)
	defer signalTick.Stop()
	defer stateTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-signalTick.C:
			t.pollSignals(ctx)
		case <-stateTick.C:
			t.pollMembers(ctx)
			t.pollChat(ctx)
		}
	}
}

func (t *PollTransport) pollSignals(ctx context.Context) {
	for _, kind := range []domain.SignalKind{domain.SignalOffer, domain.SignalAnswer, domain.SignalCandidate} {
		t.mu.Lock()
		roomID, memberID := t.roomID, t.memberID
		t.mu.Unlock()

		u := t.roomURL(roomID, "signals") + "?type=" + string(kind) + "s&member=" + url.QueryEscape(memberID)
		var resp httpx.SignalsResponse
		if err := t.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
			slog.Debug("poll signals failed", "kind", kind, "err", err)
			continue // transient; next tick retries
		}

		current := make(map[string]struct{}, len(resp.Envelopes))
		var fresh []SignalEvent
		t.mu.Lock()
		for _, env := range resp.Envelopes {
			key := fmt.Sprintf("%s|%s|%d|%s", kind, env.From, env.CreatedAt.UnixNano(), env.Payload)
			current[key] = struct{}{}
			if _, dup := t.seenSignals[key]; !dup {
				t.seenSignals[key] = time.Now()
				fresh = append(fresh, SignalEvent{Kind: kind, From: env.From, Payload: env.Payload})
			}
		}
		t.pruneLocked(t.seenSignals, string(kind)+"|", current, 2*t.cfg.SignalInterval)
		t.mu.Unlock()

		for _, ev := range fresh {
			t.emit(ev)
		}
	}
}

// pruneLocked drops keys with the given prefix that the server no longer
// returns. The age floor covers a fetch that started before the key was
// recorded and could still deliver it.
func (t *PollTransport) pruneLocked(seen map[string]time.Time, prefix string, current map[string]struct{}, minAge time.Duration) {
	cutoff := time.Now().Add(-minAge)
	for key, at := range seen {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, live := current[key]; live {
			continue
		}
		if at.Before(cutoff) {
			delete(seen, key)
		}
	}
}

func (t *PollTransport) pollMembers(ctx context.Context) {
	t.mu.Lock()
	roomID := t.roomID
	t.mu.Unlock()

	var resp httpx.MembersResponse
	if err := t.do(ctx, http.MethodGet, t.roomURL(roomID, "members"), nil, &resp); err != nil {
		slog.Debug("poll members failed", "err", err)
		return
	}
	if t.rememberMembers(resp.Members) {
		t.emit(MembersEvent{Members: resp.Members})
	}
}

func (t *PollTransport) pollChat(ctx context.Context) {
	t.mu.Lock()
	roomID := t.roomID
	t.mu.Unlock()

	var resp httpx.ChatHistoryResponse
	if err := t.do(ctx, http.MethodGet, t.roomURL(roomID, "chat"), nil, &resp); err != nil {
		slog.Debug("poll chat failed", "err", err)
		return
	}
	current := make(map[string]struct{}, len(resp.Messages))
	var fresh []ChatEvent
	t.mu.Lock()
	for _, msg := range resp.Messages {
		current[msg.ID] = struct{}{}
		if _, dup := t.seenChat[msg.ID]; !dup {
			t.seenChat[msg.ID] = time.Now()
			fresh = append(fresh, ChatEvent{Message: msg})
		}
	}
	t.pruneLocked(t.seenChat, "", current, 2*t.cfg.StateInterval)
	t.mu.Unlock()

	for _, ev := range fresh {
		t.emit(ev)
	}
}

// rememberMembers reports whether the snapshot changed.
func (t *PollTransport) rememberMembers(members []string) bool {
	fp := fmt.Sprint(members)
	t.mu.Lock()
	defer t.mu.Unlock()
	if fp == t.lastMembers {
		return false
	}
	t.lastMembers = fp
	return true
}

// emit runs under the mutex so Close cannot slip a channel close in
// between the closed check and the send.
func (t *PollTransport) emit(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	default:
		// consumer stalled; drop rather than block the poll loop
		slog.Warn("poll transport event dropped")
	}
}

// --- HTTP plumbing ---

func (t *PollTransport) roomURL(roomID, suffix string) string {
	return fmt.Sprintf("%s/rooms/%s/%s", t.cfg.BaseURL, url.PathEscape(roomID), suffix)
}

func (t *PollTransport) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var e httpx.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &ClientError{Status: resp.StatusCode, Message: e.Error}
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server fault: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
