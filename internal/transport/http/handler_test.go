package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magraj71/NewMeetSUM/internal/service"
	"github.com/Magraj71/NewMeetSUM/internal/store"
	"github.com/Magraj71/NewMeetSUM/internal/transport/ws"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := store.New(store.Limits{})
	memberSvc := service.NewMemberService(st.Registry)
	signalSvc := service.NewSignalService(st.Mailbox)
	chatSvc := service.NewChatService(st.Chat)

	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, memberSvc, signalSvc, chatSvc)

	h := NewHandler(memberSvc, signalSvc, chatSvc)
	srv := httptest.NewServer(NewRouter(h, wsServer))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestJoinReturnsMemberList(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/join", JoinRequest{MemberID: "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr MembersResponse
	require.NoError(t, json.Unmarshal(body, &mr))
	assert.Equal(t, "r1", mr.RoomID)
	assert.Equal(t, []string{"alice"}, mr.Members)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/join", JoinRequest{MemberID: "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &mr))
	assert.Equal(t, []string{"alice", "bob"}, mr.Members)
}

func TestJoinRejectsEmptyMember(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/join", JoinRequest{MemberID: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMembersOfUnknownRoomIsEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms/ghost/members", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mr MembersResponse
	require.NoError(t, json.Unmarshal(body, &mr))
	assert.Empty(t, mr.Members)
}

func TestSignalRoundTripExcludesSender(t *testing.T) {
	srv := newTestServer(t)

	payload := json.RawMessage(`{"sdp":"v=0..."}`)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "offer", Payload: payload})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// sender polls: nothing, its own envelope is invisible
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/signals?type=offers&member=alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sr SignalsResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.Empty(t, sr.Envelopes)

	// the other peer sees it
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/signals?type=offers&member=bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &sr))
	require.Len(t, sr.Envelopes, 1)
	assert.Equal(t, "alice", sr.Envelopes[0].From)
	assert.JSONEq(t, string(payload), string(sr.Envelopes[0].Payload))
}

func TestSignalClearPurgesSender(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "offer", Payload: json.RawMessage(`{}`)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "clear"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/signals?type=offers&member=bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sr SignalsResponse
	require.NoError(t, json.Unmarshal(body, &sr))
	assert.Empty(t, sr.Envelopes)
}

func TestSignalRejectsUnknownKind(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "renegotiate"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/signals?type=clear&member=alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatSendAndHistory(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/chat",
		SendChatRequest{SenderID: "alice", Body: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cr SendChatResponse
	require.NoError(t, json.Unmarshal(body, &cr))
	assert.NotEmpty(t, cr.MessageID)
	assert.Equal(t, "hello", cr.Message.Body)
	assert.Regexp(t, `^\d{2}:\d{2}$`, cr.Message.Time)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/chat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hr ChatHistoryResponse
	require.NoError(t, json.Unmarshal(body, &hr))
	require.Equal(t, 1, hr.Count)
	assert.Equal(t, cr.MessageID, hr.Messages[0].ID)
}

func TestChatBodyTooLongIs422(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/chat",
		SendChatRequest{SenderID: "alice", Body: strings.Repeat("a", service.MaxBodyLen+1)})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestChatInvalidWindowIs400(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/chat?window=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatClear(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/chat",
		SendChatRequest{SenderID: "alice", Body: "bye"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/rooms/r1/chat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms/r1/chat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hr ChatHistoryResponse
	require.NoError(t, json.Unmarshal(body, &hr))
	assert.Zero(t, hr.Count)
}

func TestOverviewCountsRoomsAndMembers(t *testing.T) {
	srv := newTestServer(t)

	for i, room := range []string{"a", "a", "b"} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/"+room+"/join",
			JoinRequest{MemberID: fmt.Sprintf("m%d", i)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var or OverviewResponse
	require.NoError(t, json.Unmarshal(body, &or))
	assert.Equal(t, 2, or.TotalRooms)
	assert.Equal(t, 3, or.TotalMembers)
	assert.Equal(t, []string{"m0", "m1"}, or.Rooms["a"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMailboxFullIs429(t *testing.T) {
	t.Parallel()

	st := store.New(store.Limits{SignalQueueMax: 1, SignalRetention: time.Minute})
	memberSvc := service.NewMemberService(st.Registry)
	signalSvc := service.NewSignalService(st.Mailbox)
	chatSvc := service.NewChatService(st.Chat)
	h := NewHandler(memberSvc, signalSvc, chatSvc)
	srv := httptest.NewServer(NewRouter(h, ws.NewServer(ws.NewHub(), memberSvc, signalSvc, chatSvc)))
	t.Cleanup(srv.Close)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "candidate", Payload: json.RawMessage(`{}`)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/rooms/r1/signals",
		SendSignalRequest{MemberID: "alice", Type: "candidate", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
