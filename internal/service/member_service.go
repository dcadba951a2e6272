package service

import (
	"strings"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/metrics"
	"github.com/Magraj71/NewMeetSUM/internal/store"
)

// MemberService fronts the room registry. None of its operations can fail
// in the domain sense; errors are validation only.
type MemberService struct {
	registry *store.RoomRegistry
}

func NewMemberService(registry *store.RoomRegistry) *MemberService {
	return &MemberService{registry: registry}
}

// Join adds the member to the room and returns the updated member list.
// Idempotent.
func (s *MemberService) Join(roomID, memberID string) ([]string, error) {
	if err := validateIDs(roomID, memberID); err != nil {
		return nil, err
	}
	s.registry.Join(roomID, memberID)
	metrics.RoomJoins.Inc()
	return s.registry.ListMembers(roomID), nil
}

// Leave removes the member from whatever room it was in. Idempotent.
func (s *MemberService) Leave(roomID, memberID string) error {
	if err := validateIDs(roomID, memberID); err != nil {
		return err
	}
	s.registry.Leave(memberID)
	metrics.RoomLeaves.Inc()
	return nil
}

// List returns the current member snapshot; an unknown room is a valid,
// empty state.
func (s *MemberService) List(roomID string) ([]string, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, domain.ErrEmptyRoomID
	}
	return s.registry.ListMembers(roomID), nil
}

// Overview returns every room with its members.
func (s *MemberService) Overview() map[string][]string {
	return s.registry.Rooms()
}

func validateIDs(roomID, memberID string) error {
	if strings.TrimSpace(roomID) == "" {
		return domain.ErrEmptyRoomID
	}
	if strings.TrimSpace(memberID) == "" {
		return domain.ErrEmptyMemberID
	}
	return nil
}
