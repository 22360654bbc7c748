package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ChangeKind says what happened to an event.
type ChangeKind string

const (
	// ChangeEventSaved covers creating an event, renaming it and any change
	// to its responsibles, expenses or income.
	ChangeEventSaved   ChangeKind = "event_saved"
	ChangeEventDeleted ChangeKind = "event_deleted"
)

var ErrInvalidMessage = errors.New("invalid ledger change message")

// LedgerChangeMessage announces that an event changed. It carries ids only;
// consumers load the current state themselves.
type LedgerChangeMessage struct {
	EventID   int64      `json:"event_id"`
	OwnerID   int64      `json:"owner_id"`
	Change    ChangeKind `json:"change"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewLedgerChangeMessage(eventID, ownerID int64, change ChangeKind) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		EventID:   eventID,
		OwnerID:   ownerID,
		Change:    change,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerChangeMessage) Validate() error {
	if m.EventID <= 0 || m.OwnerID <= 0 {
		return fmt.Errorf("%w: missing event or owner id", ErrInvalidMessage)
	}
	switch m.Change {
	case ChangeEventSaved, ChangeEventDeleted:
		return nil
	default:
		return fmt.Errorf("%w: unknown change %q", ErrInvalidMessage, m.Change)
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and validates a message body.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
