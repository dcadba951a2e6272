package domain

// MessageType tags the shape of a chat message body.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageEmoji MessageType = "emoji"
	MessageFile  MessageType = "file"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageText, MessageEmoji, MessageFile:
		return MessageType(s), nil
	case "":
		return MessageText, nil
	}
	return "", ErrInvalidMessage
}

// ChatMessage is one entry of a room's bounded chat buffer. ID is a
// monotonic ULID, so repeated delivery over the polling transport can be
// deduplicated and ties between concurrent senders stay ordered.
type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Body      string      `json:"body"`
	Type      MessageType `json:"type"`
	FileName  string      `json:"file_name,omitempty"`
	FileData  string      `json:"file_data,omitempty"`
	Timestamp int64       `json:"timestamp"` // epoch millis
	Time      string      `json:"time"`      // HH:MM, for display
}
