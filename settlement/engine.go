package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"groupbuy-backend/apperr"
	"groupbuy-backend/events"
	"groupbuy-backend/metrics"
	"groupbuy-backend/models"
	"groupbuy-backend/retry"
	"groupbuy-backend/store"
)

// Locker serializes work on one order across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

type Options struct {
	FeeRate       decimal.Decimal
	PenaltyRate   decimal.Decimal
	GroupOnSettle string // GroupArchive or GroupDelete
	Retry         retry.Policy
	Locker        Locker           // optional
	Publisher     events.Publisher // optional
	Metrics       *metrics.Metrics // optional
}

// Engine is the entry point for money movement. Each operation runs its
// attempt under the retry policy, then publishes the outcome.
type Engine struct {
	retry     retry.Policy
	locker    Locker
	publisher events.Publisher
	metrics   *metrics.Metrics

	settle func(ctx context.Context, groupID, orderID, leaderID uuid.UUID, splits []models.OrderSplit) (*Result, error)
	noShow func(ctx context.Context, groupID, orderID, userID, leaderID uuid.UUID) (*NoShowResult, error)
}

func NewEngine(s *store.Store, opts Options) *Engine {
	if opts.Publisher == nil {
		opts.Publisher = events.Log{}
	}
	return &Engine{
		retry:     opts.Retry,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		settle:    NewCoordinator(s, opts.FeeRate, opts.GroupOnSettle).Attempt,
		noShow:    NewNoShowProcessor(s, opts.PenaltyRate).Attempt,
	}
}

// ProcessOrderCompletion settles an order and reports whether it committed.
func (e *Engine) ProcessOrderCompletion(ctx context.Context, groupID, orderID, leaderID uuid.UUID, splits []models.OrderSplit) (bool, error) {
	if _, err := e.Settle(ctx, groupID, orderID, leaderID, splits); err != nil {
		return false, err
	}
	return true, nil
}

// Settle is ProcessOrderCompletion returning the committed settlement.
func (e *Engine) Settle(ctx context.Context, groupID, orderID, leaderID uuid.UUID, splits []models.OrderSplit) (*Result, error) {
	start := time.Now()
	log := slog.With("group_id", groupID, "order_id", orderID, "leader_id", leaderID)

	var result *Result
	err := retry.Do(ctx, e.retry, func(ctx context.Context, attempt int) error {
		release, err := e.lock(ctx, orderID)
		if err != nil {
			return err
		}
		defer release()

		result, err = e.settle(ctx, groupID, orderID, leaderID, splits)
		return err
	}, e.onRetry(metrics.OpSettlement))

	e.metrics.Observe(metrics.OpSettlement, outcome(err), time.Since(start))
	if err != nil {
		log.Warn("Settlement failed", "kind", apperr.KindOf(err), "error", err)
		return nil, err
	}

	log.Info("Settlement committed",
		"total", result.TotalAmount.StringFixed(2),
		"fee", result.PlatformFee.StringFixed(2),
		"payout", result.Payout.StringFixed(2),
		"members", len(result.Debits),
	)
	e.metrics.Moved(metrics.OpSettlement, result.TotalAmount.InexactFloat64())

	members := make([]uuid.UUID, 0, len(result.Debits))
	for _, d := range result.Debits {
		members = append(members, d.UserID)
	}
	e.publish(ctx, &events.Event{
		Type:        events.TypeSettlementCompleted,
		GroupID:     groupID,
		OrderID:     orderID,
		LeaderID:    leaderID,
		Amount:      result.Payout,
		PlatformFee: result.PlatformFee,
		Members:     members,
		Timestamp:   result.CompletedAt,
	})
	return result, nil
}

// ProcessNoShow charges userID's penalty to the leader and reports whether
// it committed.
func (e *Engine) ProcessNoShow(ctx context.Context, groupID, orderID, userID, leaderID uuid.UUID) (bool, error) {
	if _, err := e.ApplyNoShow(ctx, groupID, orderID, userID, leaderID); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyNoShow is ProcessNoShow returning the committed penalty.
func (e *Engine) ApplyNoShow(ctx context.Context, groupID, orderID, userID, leaderID uuid.UUID) (*NoShowResult, error) {
	start := time.Now()
	log := slog.With("group_id", groupID, "order_id", orderID, "user_id", userID)

	var result *NoShowResult
	err := retry.Do(ctx, e.retry, func(ctx context.Context, attempt int) error {
		release, err := e.lock(ctx, orderID)
		if err != nil {
			return err
		}
		defer release()

		result, err = e.noShow(ctx, groupID, orderID, userID, leaderID)
		return err
	}, e.onRetry(metrics.OpNoShow))

	e.metrics.Observe(metrics.OpNoShow, outcome(err), time.Since(start))
	if err != nil {
		log.Warn("No-show penalty failed", "kind", apperr.KindOf(err), "error", err)
		return nil, err
	}

	log.Info("No-show penalty applied", "penalty", result.Penalty.StringFixed(2))
	e.metrics.Moved(metrics.OpNoShow, result.Penalty.InexactFloat64())
	e.publish(ctx, &events.Event{
		Type:      events.TypeNoShowApplied,
		GroupID:   groupID,
		OrderID:   orderID,
		LeaderID:  leaderID,
		UserID:    userID,
		Amount:    result.Penalty,
		Timestamp: result.At,
	})
	return result, nil
}

func (e *Engine) lock(ctx context.Context, orderID uuid.UUID) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	return e.locker.Lock(ctx, "settle:"+orderID.String())
}

func (e *Engine) onRetry(op string) retry.Observer {
	return func(attempt int, err error) {
		e.metrics.Retry(op)
	}
}

// publish never fails the operation: the money has already moved.
func (e *Engine) publish(ctx context.Context, event *events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.metrics.PublishError()
		slog.Error("Failed to publish event", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
