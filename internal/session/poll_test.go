package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/service"
	"github.com/Magraj71/NewMeetSUM/internal/store"
	httpx "github.com/Magraj71/NewMeetSUM/internal/transport/http"
	"github.com/Magraj71/NewMeetSUM/internal/transport/ws"
)

type pollFixture struct {
	srv       *httptest.Server
	signalSvc *service.SignalService
	chatSvc   *service.ChatService
}

func newPollFixture(t *testing.T) *pollFixture {
	return newPollFixtureLimits(t, store.Limits{})
}

func newPollFixtureLimits(t *testing.T, limits store.Limits) *pollFixture {
	t.Helper()

	st := store.New(limits)
	memberSvc := service.NewMemberService(st.Registry)
	signalSvc := service.NewSignalService(st.Mailbox)
	chatSvc := service.NewChatService(st.Chat)

	h := httpx.NewHandler(memberSvc, signalSvc, chatSvc)
	wsServer := ws.NewServer(ws.NewHub(), memberSvc, signalSvc, chatSvc)
	srv := httptest.NewServer(httpx.NewRouter(h, wsServer))
	t.Cleanup(srv.Close)

	return &pollFixture{srv: srv, signalSvc: signalSvc, chatSvc: chatSvc}
}

func newPollTransportFor(t *testing.T, f *pollFixture) *PollTransport {
	t.Helper()
	pt := NewPollTransport(PollConfig{
		BaseURL:        f.srv.URL,
		SignalInterval: 25 * time.Millisecond,
		StateInterval:  25 * time.Millisecond,
	})
	t.Cleanup(func() { _ = pt.Close() })
	return pt
}

func waitEvent[T Event](t *testing.T, events <-chan Event, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("no %T event within %s", zero, timeout)
			return zero
		}
	}
}

func TestPollJoinEmitsMembers(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))

	ev := waitEvent[MembersEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, []string{"alice"}, ev.Members)
}

func TestPollJoinBadRequestSurfacesClientError(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	err := pt.Join(context.Background(), "r1", "  ")
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 400, ce.Status)
}

func TestPollPicksUpForeignSignalsOnce(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	require.NoError(t, f.signalSvc.Deposit("r1", "bob", "offer", json.RawMessage(`{"sdp":"x"}`)))

	ev := waitEvent[SignalEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, domain.SignalOffer, ev.Kind)
	assert.Equal(t, "bob", ev.From)

	// fetch is non-destructive server-side; the dedupe set must keep the
	// envelope from surfacing again
	select {
	case ev := <-pt.Events():
		if _, isSignal := ev.(SignalEvent); isSignal {
			t.Fatalf("duplicate signal event: %+v", ev)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollOwnSignalsNeverSurface(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	require.NoError(t, pt.SendSignal(context.Background(), domain.SignalOffer, json.RawMessage(`{"sdp":"mine"}`)))

	select {
	case ev := <-pt.Events():
		if _, isSignal := ev.(SignalEvent); isSignal {
			t.Fatalf("own signal echoed back: %+v", ev)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollSendChatEmitsMessageAndAck(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	require.NoError(t, pt.SendChat(context.Background(), ChatSend{Body: "hello"}))

	chat := waitEvent[ChatEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, "hello", chat.Message.Body)
	assert.Equal(t, "alice", chat.Message.SenderID)

	ack := waitEvent[AckEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, chat.Message.ID, ack.MsgID)

	// later history polls must not re-emit the same message
	select {
	case ev := <-pt.Events():
		if ce, isChat := ev.(ChatEvent); isChat {
			t.Fatalf("duplicate chat event: %+v", ce)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollSeesForeignChat(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	_, err := f.chatSvc.Send("r1", "bob", "yo", "", "", "")
	require.NoError(t, err)

	chat := waitEvent[ChatEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, "bob", chat.Message.SenderID)
}

func TestPollMembersChangeEmitsOnce(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	waitEvent[MembersEvent](t, pt.Events(), 2*time.Second)

	// second member joins through the plain API
	other := newPollTransportFor(t, f)
	require.NoError(t, other.Join(context.Background(), "r1", "bob"))

	ev := waitEvent[MembersEvent](t, pt.Events(), 2*time.Second)
	assert.Equal(t, []string{"alice", "bob"}, ev.Members)

	// unchanged snapshots stay silent
	select {
	case ev := <-pt.Events():
		if me, isMembers := ev.(MembersEvent); isMembers {
			t.Fatalf("redundant members event: %+v", me)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollPrunesDedupeEntriesAfterServerDrop(t *testing.T) {
	f := newPollFixtureLimits(t, store.Limits{SignalRetention: 50 * time.Millisecond})
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	require.NoError(t, f.signalSvc.Deposit("r1", "bob", "offer", json.RawMessage(`{"sdp":"x"}`)))
	waitEvent[SignalEvent](t, pt.Events(), 2*time.Second)

	require.NoError(t, pt.SendChat(context.Background(), ChatSend{Body: "hi"}))
	waitEvent[ChatEvent](t, pt.Events(), 2*time.Second)
	require.NoError(t, f.chatSvc.Clear("r1"))

	// the envelope expires server-side and the chat log was cleared;
	// once the entries age past the in-flight window the dedupe sets
	// must shrink back to empty instead of growing for the session's life
	require.Eventually(t, func() bool {
		pt.mu.Lock()
		defer pt.mu.Unlock()
		return len(pt.seenSignals) == 0 && len(pt.seenChat) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollClearChat(t *testing.T) {
	f := newPollFixture(t)
	pt := newPollTransportFor(t, f)

	require.NoError(t, pt.Join(context.Background(), "r1", "alice"))
	require.NoError(t, pt.SendChat(context.Background(), ChatSend{Body: "x"}))
	require.NoError(t, pt.ClearChat(context.Background()))

	msgs, err := f.chatSvc.History("r1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
