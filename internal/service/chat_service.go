package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/metrics"
	"github.com/Magraj71/NewMeetSUM/internal/store"
)

const (
	// MaxBodyLen caps a chat body (text or emoji) in bytes.
	MaxBodyLen = 1000
	// MaxFileBytes caps an inline attachment payload.
	MaxFileBytes = 5 << 20
)

// ChatService validates and stores chat messages. Both transports go
// through it so push and pull peers observe the same buffer.
type ChatService struct {
	chat *store.ChatLog
}

func NewChatService(chat *store.ChatLog) *ChatService {
	return &ChatService{chat: chat}
}

// Send validates, stores and returns the message as stored (id and
// timestamps assigned).
func (s *ChatService) Send(roomID, senderID, body, msgType, fileName, fileData string) (domain.ChatMessage, error) {
	if err := validateIDs(roomID, senderID); err != nil {
		return domain.ChatMessage{}, err
	}
	typ, err := domain.ParseMessageType(msgType)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	if strings.TrimSpace(body) == "" {
		if typ != domain.MessageFile {
			return domain.ChatMessage{}, domain.ErrEmptyBody
		}
		body = fmt.Sprintf("File: %s", fileName)
	}
	if len(body) > MaxBodyLen {
		return domain.ChatMessage{}, domain.ErrBodyTooLong
	}
	if len(fileData) > MaxFileBytes {
		return domain.ChatMessage{}, domain.ErrFileTooLarge
	}

	msg := domain.ChatMessage{
		SenderID: senderID,
		Body:     body,
		Type:     typ,
		FileName: fileName,
		FileData: fileData,
	}
	stored, err := s.chat.Append(roomID, msg)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("chat append: %w", err)
	}
	metrics.ChatMessages.WithLabelValues(string(typ)).Inc()
	return stored, nil
}

// History returns the room's messages inside the trailing window, oldest
// first. window <= 0 means the configured default.
func (s *ChatService) History(roomID string, window time.Duration) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, domain.ErrEmptyRoomID
	}
	return s.chat.ListSince(roomID, window), nil
}

// Clear drops the room's stored messages. Explicit user action only.
func (s *ChatService) Clear(roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return domain.ErrEmptyRoomID
	}
	s.chat.Clear(roomID)
	return nil
}
