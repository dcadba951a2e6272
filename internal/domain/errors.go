package domain

import "errors"

var (
	ErrEmptyRoomID    = errors.New("room id is required")
	ErrEmptyMemberID  = errors.New("member id is required")
	ErrEmptyBody      = errors.New("message body is required")
	ErrBodyTooLong    = errors.New("message body too long")
	ErrFileTooLarge   = errors.New("attachment too large")
	ErrInvalidSignal  = errors.New("invalid signal kind")
	ErrInvalidMessage = errors.New("invalid message type")
	ErrMailboxFull    = errors.New("signal mailbox over capacity")
)
