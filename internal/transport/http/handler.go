package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	memberSvc *service.MemberService
	signalSvc *service.SignalService
	chatSvc   *service.ChatService
}

func NewHandler(member *service.MemberService, signal *service.SignalService, chat *service.ChatService) *Handler {
	return &Handler{
		memberSvc: member,
		signalSvc: signal,
		chatSvc:   chat,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status classes:
// validation -> 4xx, anything unexpected -> 500.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrBodyTooLong):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrFileTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMailboxFull):
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrEmptyRoomID),
		errors.Is(err, domain.ErrEmptyMemberID),
		errors.Is(err, domain.ErrEmptyBody),
		errors.Is(err, domain.ErrInvalidSignal),
		errors.Is(err, domain.ErrInvalidMessage):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler."+op, slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// POST /rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	members, err := h.memberSvc.Join(roomID, req.MemberID)
	if err != nil {
		writeError(w, "JoinRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, MembersResponse{RoomID: roomID, Members: members})
}

// POST /rooms/{id}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.memberSvc.Leave(roomID, req.MemberID); err != nil {
		writeError(w, "LeaveRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "left"})
}

// GET /rooms/{id}/members
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	members, err := h.memberSvc.List(roomID)
	if err != nil {
		writeError(w, "GetMembers", err)
		return
	}
	writeJSON(w, http.StatusOK, MembersResponse{RoomID: roomID, Members: members})
}

// GET /rooms
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	rooms := h.memberSvc.Overview()
	total := 0
	for _, ms := range rooms {
		total += len(ms)
	}
	writeJSON(w, http.StatusOK, OverviewResponse{
		TotalRooms:   len(rooms),
		TotalMembers: total,
		Rooms:        rooms,
	})
}

// POST /rooms/{id}/signals
func (h *Handler) SendSignal(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var req SendSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.signalSvc.Deposit(roomID, req.MemberID, req.Type, req.Payload); err != nil {
		writeError(w, "SendSignal", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GET /rooms/{id}/signals?type=offers|answers|candidates&member=
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	kind := r.URL.Query().Get("type")
	member := r.URL.Query().Get("member")

	envs, err := h.signalSvc.Fetch(roomID, member, kind)
	if err != nil {
		writeError(w, "GetSignals", err)
		return
	}
	writeJSON(w, http.StatusOK, SignalsResponse{Envelopes: envs})
}

// POST /rooms/{id}/chat
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var req SendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	msg, err := h.chatSvc.Send(roomID, req.SenderID, req.Body, req.Type, req.FileName, req.FileData)
	if err != nil {
		writeError(w, "SendChat", err)
		return
	}
	writeJSON(w, http.StatusCreated, SendChatResponse{MessageID: msg.ID, Message: msg})
}

// GET /rooms/{id}/chat?window=1h
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	var window time.Duration
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid window"})
			return
		}
		window = d
	}

	msgs, err := h.chatSvc.History(roomID, window)
	if err != nil {
		writeError(w, "GetChat", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{Messages: msgs, Count: len(msgs)})
}

// DELETE /rooms/{id}/chat
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	if err := h.chatSvc.Clear(roomID); err != nil {
		writeError(w, "ClearChat", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}
