// Package events carries settlement outcomes to the rest of the system.
// Publishing happens after commit; a failed publish never undoes money
// movement.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeSettlementCompleted = "settlement.completed"
	TypeNoShowApplied       = "noshow.applied"
)

// Event is the JSON payload published for every settlement outcome.
type Event struct {
	Type        string          `json:"event_type"`
	GroupID     uuid.UUID       `json:"group_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	LeaderID    uuid.UUID       `json:"leader_id"`
	UserID      uuid.UUID       `json:"user_id,omitempty"` // penalized member for noshow.applied
	Amount      decimal.Decimal `json:"amount"`
	PlatformFee decimal.Decimal `json:"platform_fee,omitempty"`
	Members     []uuid.UUID     `json:"members,omitempty"` // debited members for settlement.completed
	Timestamp   time.Time       `json:"timestamp"`
}

// Key partitions events by order.
func (e *Event) Key() string {
	return e.OrderID.String()
}

func (e *Event) marshal() ([]byte, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Multi fans an event out to several publishers. Every publisher is tried;
// the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log only records events. It stands in when no broker is configured.
type Log struct{}

func (Log) Publish(ctx context.Context, event *Event) error {
	slog.InfoContext(ctx, "event",
		"type", event.Type,
		"group_id", event.GroupID,
		"order_id", event.OrderID,
		"amount", event.Amount.StringFixed(2),
	)
	return nil
}

func (Log) Close() error { return nil }
