package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
)

// ChatLog keeps a bounded, time-ordered message buffer per room. IDs are
// monotonic ULIDs assigned under the log's lock, which gives one logical
// ordering per room and unique ids even when appends tie on the millisecond.
type ChatLog struct {
	mu      sync.Mutex
	rooms   map[string][]domain.ChatMessage
	cap     int
	window  time.Duration
	entropy *ulid.MonotonicEntropy

	now func() time.Time
}

func NewChatLog(cap int, window time.Duration) *ChatLog {
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ChatLog{
		rooms:   make(map[string][]domain.ChatMessage),
		cap:     cap,
		window:  window,
		entropy: ulid.Monotonic(seed, 0),
		now:     time.Now,
	}
}

// Append stores the message, assigning its id and server-side timestamps,
// and trims the room buffer to the configured cap (oldest dropped first).
// Validation happens in the service layer before the message gets here.
func (c *ChatLog) Append(roomID string, msg domain.ChatMessage) (domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	id, err := ulid.New(ulid.Timestamp(now), c.entropy)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	msg.ID = id.String()
	msg.RoomID = roomID
	msg.Timestamp = now.UnixMilli()
	msg.Time = now.Format("15:04")

	buf := append(c.rooms[roomID], msg)
	if len(buf) > c.cap {
		buf = append(buf[:0:0], buf[len(buf)-c.cap:]...)
	}
	c.rooms[roomID] = buf

	return msg, nil
}

// List returns the room's messages inside the trailing window, oldest
// first. An unknown room yields an empty slice.
func (c *ChatLog) List(roomID string) []domain.ChatMessage {
	return c.ListSince(roomID, c.window)
}

// ListSince is List with an explicit window; zero or negative means the
// configured default.
func (c *ChatLog) ListSince(roomID string, window time.Duration) []domain.ChatMessage {
	if window <= 0 {
		window = c.window
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window).UnixMilli()
	buf := c.rooms[roomID]
	out := make([]domain.ChatMessage, 0, len(buf))
	for _, m := range buf {
		if m.Timestamp > cutoff {
			out = append(out, m)
		}
	}
	return out
}

// Clear drops every stored message for the room.
func (c *ChatLog) Clear(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}
