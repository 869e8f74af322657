// Package ledger keeps each user's transaction list in the record store.
//
// The list is stored whole under one key and every mutation is a
// read-modify-write of that key with no version check: two concurrent
// mutations for the same user can lose one write. Callers needing stronger
// guarantees should swap the Store for one with conditional puts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinhuaitao/accounting/internal/events"
	"github.com/jinhuaitao/accounting/internal/models"
	"github.com/jinhuaitao/accounting/internal/storage"
	"github.com/sirupsen/logrus"
)

const transactionsPrefix = "transactions_"

var (
	// ErrInvalidType is returned by Append when the draft type is neither income nor expense.
	ErrInvalidType = errors.New("invalid transaction type")
	// ErrInvalidAmount is returned by Append for a numeric amount that is
	// negative or outside float64 range. Non-numeric text is stored as given.
	ErrInvalidAmount = errors.New("invalid transaction amount")
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"/", "&#x2F;",
)

// Sanitize escapes the characters that could break out of HTML text or attributes.
func Sanitize(s string) string {
	return htmlEscaper.Replace(s)
}

// Key is the record key holding userID's transactions.
func Key(userID string) string {
	return transactionsPrefix + userID
}

// Repository lists, appends and removes transactions.
type Repository struct {
	store     storage.Store
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
}

// NewRepository returns a Repository over store. A nil publisher disables events.
func NewRepository(store storage.Store, publisher events.Publisher, log logrus.FieldLogger) *Repository {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Repository{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// List returns userID's transactions. A user with no record has an empty list.
func (r *Repository) List(ctx context.Context, userID string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := storage.GetJSON(ctx, r.store, Key(userID), &txs)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// Append stores draft as a new transaction with a fresh id and the current
// time, and returns the updated list.
func (r *Repository) Append(ctx context.Context, userID string, draft models.Draft) ([]models.Transaction, error) {
	if !draft.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, draft.Type)
	}

	amount := draft.Amount
	d, err := amount.Decimal()
	switch {
	case err == nil:
		amount = models.NewAmount(d)
	case errors.Is(err, models.ErrAmountOutOfRange):
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	txs, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx := models.Transaction{
		ID:          r.newID(),
		Type:        draft.Type,
		Amount:      amount,
		Category:    Sanitize(draft.Category),
		Description: Sanitize(draft.Description),
		Timestamp:   r.now().UTC(),
	}
	txs = append(txs, tx)

	if err := storage.PutJSON(ctx, r.store, Key(userID), txs, 0); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	r.publish(ctx, events.TransactionCreated, userID, tx.ID)
	return txs, nil
}

// Remove drops the transaction with the given id and returns the resulting
// list. Removing an unknown id leaves the list untouched.
func (r *Repository) Remove(ctx context.Context, userID, id string) ([]models.Transaction, error) {
	txs, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	if len(kept) == len(txs) {
		return txs, nil
	}

	if err := storage.PutJSON(ctx, r.store, Key(userID), kept, 0); err != nil {
		return nil, fmt.Errorf("remove transaction: %w", err)
	}
	r.publish(ctx, events.TransactionDeleted, userID, id)
	return kept, nil
}

func (r *Repository) publish(ctx context.Context, eventType, userID, txID string) {
	e := events.Event{Type: eventType, UserID: userID, TransactionID: txID, At: r.now().UTC()}
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"event":          eventType,
			"transaction_id": txID,
		}).Error("Failed to publish transaction event")
	}
}
