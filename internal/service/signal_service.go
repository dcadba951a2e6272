package service

import (
	"encoding/json"
	"strings"

	"github.com/Magraj71/NewMeetSUM/internal/domain"
	"github.com/Magraj71/NewMeetSUM/internal/metrics"
	"github.com/Magraj71/NewMeetSUM/internal/store"
)

// SignalService fronts the signal mailbox for the polling transport. The
// socket transport relays envelopes directly and only uses Deposit for
// clear control messages.
type SignalService struct {
	mailbox *store.SignalMailbox
}

func NewSignalService(mailbox *store.SignalMailbox) *SignalService {
	return &SignalService{mailbox: mailbox}
}

// Deposit validates and stores one envelope. kind accepts
// offer|answer|candidate|clear.
func (s *SignalService) Deposit(roomID, memberID, kind string, payload json.RawMessage) error {
	if err := validateIDs(roomID, memberID); err != nil {
		return err
	}
	k, err := domain.ParseSignalKind(kind, true)
	if err != nil {
		return err
	}
	if err := s.mailbox.Deposit(roomID, k, memberID, payload); err != nil {
		return err
	}
	metrics.SignalsDeposited.WithLabelValues(string(k)).Inc()
	return nil
}

// Fetch returns pending envelopes of one kind, excluding the requester's
// own. kind accepts the plural wire form (offers|answers|candidates) as
// well as the singular.
func (s *SignalService) Fetch(roomID, memberID, kind string) ([]domain.SignalEnvelope, error) {
	if err := validateIDs(roomID, memberID); err != nil {
		return nil, err
	}
	k, err := domain.ParseSignalKind(strings.TrimSuffix(kind, "s"), false)
	if err != nil {
		return nil, err
	}
	envs := s.mailbox.Fetch(roomID, k, memberID)
	metrics.SignalsFetched.WithLabelValues(string(k)).Add(float64(len(envs)))
	return envs, nil
}
