package http

import (
	"encoding/json"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type JoinRequest struct {
	MemberID string `json:"member_id"`
}

type LeaveRequest struct {
	MemberID string `json:"member_id"`
}

type MembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

type OverviewResponse struct {
	TotalRooms   int                 `json:"total_rooms"`
	TotalMembers int                 `json:"total_members"`
	Rooms        map[string][]string `json:"rooms"`
}

type SendSignalRequest struct {
	MemberID string          `json:"member_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type SignalsResponse struct {
	Envelopes []domain.SignalEnvelope `json:"envelopes"`
}

type SendChatRequest struct {
	SenderID string `json:"sender_id"`
	Body     string `json:"body"`
	Type     string `json:"type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

type SendChatResponse struct {
	MessageID string             `json:"message_id"`
	Message   domain.ChatMessage `json:"message"`
}

type ChatHistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	Count    int                  `json:"count"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
