package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType names a committed change to the expense table.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEventID   = errors.New("invalid expense id")
)

// ExpenseEvent carries only the expense id; consumers read the row from
// the store when they need its content.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(t EventType, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      t,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the event type and id.
func (e *ExpenseEvent) Validate() error {
	switch e.Type {
	case EventExpenseCreated, EventExpenseDeleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEventID, e.ID)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event. It does not validate it.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
