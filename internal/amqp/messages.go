package amqp

import (
	"encoding/json"
	"time"
)

// Mutation operations carried on the wire.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// MutationEvent announces a ledger change. It carries only identifiers;
// consumers fetch the full record from the database, so a stale event
// never overwrites fresher state.
type MutationEvent struct {
	UserID     string    `json:"user_id"`
	RecordID   string    `json:"record_id"`
	RecordKind string    `json:"record_kind"`
	Op         string    `json:"op"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewMutationEvent(userID, recordID, recordKind, op string) *MutationEvent {
	return &MutationEvent{
		UserID:     userID,
		RecordID:   recordID,
		RecordKind: recordKind,
		Op:         op,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationEventFromJSON creates an event from JSON bytes
func MutationEventFromJSON(data []byte) (*MutationEvent, error) {
	var msg MutationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
