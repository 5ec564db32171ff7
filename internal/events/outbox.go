package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

const (
	EventEscrowLocked     = "escrow.locked"
	EventEscrowSettled    = "escrow.settled"
	EventEscrowRefunded   = "escrow.refunded"
	EventDepositConfirmed = "wallet.deposit_confirmed"
)

// Envelope is the published message body.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Enqueue writes an outbox record inside the caller's transaction, so the
// event exists if and only if the state change it describes commits.
func Enqueue(ctx context.Context, tx store.Tx, eventType, partitionKey string, data any, at time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	id := uuid.New()
	payload, err := json.Marshal(Envelope{EventID: id, EventType: eventType, OccurredAt: at, Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return tx.EnqueueOutbox(ctx, domain.OutboxRecord{
		ID:           id,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		Status:       domain.OutboxPending,
		CreatedAt:    at,
	})
}
