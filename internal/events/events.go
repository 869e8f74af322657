// Package events publishes notifications about changes to a user's transactions.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types.
const (
	TransactionCreated = "transaction.created"
	TransactionDeleted = "transaction.deleted"
)

// Event describes one persisted change.
type Event struct {
	Type          string    `json:"event"`
	UserID        string    `json:"userId"`
	TransactionID string    `json:"transactionId"`
	At            time.Time `json:"at"`
}

// Marshal encodes the event body.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
