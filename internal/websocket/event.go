package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated        EventType = "created"
	EventTypeDeleted        EventType = "deleted"
	EventTypeBalanceChanged EventType = "balance_changed"
	EventTypePaid           EventType = "paid"
	EventTypeWrittenOff     EventType = "written_off"
	EventTypeRepaid         EventType = "repaid"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeAccount    EntityType = "account"
	EntityTypeTransfer   EntityType = "transfer"
	EntityTypeReceivable EntityType = "receivable"
	EntityTypeExpense    EntityType = "expense"
	EntityTypeAdvance    EntityType = "advance"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, accounts, timestamp }
type Event struct {
	Type      string      `json:"type"`               // Combined type e.g. "transfer.created"
	Entity    EntityType  `json:"entity"`             // Entity type e.g. "transfer"
	Payload   interface{} `json:"payload"`            // Full entity data
	Accounts  []string    `json:"accounts,omitempty"` // Accounts whose balance the event touches
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}, accounts ...string) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Accounts:  accounts,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Touches reports whether the event concerns accountID.
// Events without accounts concern everyone.
func (e Event) Touches(accountID string) bool {
	if len(e.Accounts) == 0 {
		return true
	}
	for _, id := range e.Accounts {
		if id == accountID {
			return true
		}
	}
	return false
}

// AccountCreated creates an account.created event
func AccountCreated(payload interface{}, accountID string) Event {
	return NewEvent(EventTypeCreated, EntityTypeAccount, payload, accountID)
}

// AccountBalanceChanged creates an account.balance_changed event
func AccountBalanceChanged(payload interface{}, accountID string) Event {
	return NewEvent(EventTypeBalanceChanged, EntityTypeAccount, payload, accountID)
}

// TransferCreated creates a transfer.created event
func TransferCreated(payload interface{}, fromAccountID, toAccountID string) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransfer, payload, fromAccountID, toAccountID)
}

// ReceivableCreated creates a receivable.created event
func ReceivableCreated(payload interface{}, accounts ...string) Event {
	return NewEvent(EventTypeCreated, EntityTypeReceivable, payload, accounts...)
}

// ReceivablePaid creates a receivable.paid event
func ReceivablePaid(payload interface{}, accountID string) Event {
	return NewEvent(EventTypePaid, EntityTypeReceivable, payload, accountID)
}

// ReceivableWrittenOff creates a receivable.written_off event
func ReceivableWrittenOff(payload interface{}) Event {
	return NewEvent(EventTypeWrittenOff, EntityTypeReceivable, payload)
}

// ExpenseCreated creates an expense.created event
func ExpenseCreated(payload interface{}, accounts ...string) Event {
	return NewEvent(EventTypeCreated, EntityTypeExpense, payload, accounts...)
}

// ExpenseDeleted creates an expense.deleted event
func ExpenseDeleted(payload interface{}, accounts ...string) Event {
	return NewEvent(EventTypeDeleted, EntityTypeExpense, payload, accounts...)
}

// AdvanceCreated creates an advance.created event
func AdvanceCreated(payload interface{}, accountID string) Event {
	return NewEvent(EventTypeCreated, EntityTypeAdvance, payload, accountID)
}

// AdvanceRepaid creates an advance.repaid event
func AdvanceRepaid(payload interface{}, accountID string) Event {
	return NewEvent(EventTypeRepaid, EntityTypeAdvance, payload, accountID)
}

// AdvanceDeleted creates an advance.deleted event
func AdvanceDeleted(payload interface{}, accountID string) Event {
	return NewEvent(EventTypeDeleted, EntityTypeAdvance, payload, accountID)
}
