package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"groupbuy-backend/apperr"
	"groupbuy-backend/calculator"
	"groupbuy-backend/models"
	"groupbuy-backend/store"
)

// NoShowResult describes a committed no-show penalty.
type NoShowResult struct {
	GroupID  uuid.UUID       `json:"group_id"`
	OrderID  uuid.UUID       `json:"order_id"`
	UserID   uuid.UUID       `json:"user_id"`
	LeaderID uuid.UUID       `json:"leader_id"`
	Penalty  decimal.Decimal `json:"penalty"`
	At       time.Time       `json:"at"`
}

// NoShowProcessor charges a member who never collected their items. The
// decision that a member is a no-show is made by the caller.
type NoShowProcessor struct {
	store       *store.Store
	penaltyRate decimal.Decimal
	now         func() time.Time
}

func NewNoShowProcessor(s *store.Store, penaltyRate decimal.Decimal) *NoShowProcessor {
	return &NoShowProcessor{store: s, penaltyRate: penaltyRate, now: time.Now}
}

// Attempt moves round2(finalAmount * penaltyRate) from userID to leaderID and
// flags the member's item. A member can be penalized once per order.
func (p *NoShowProcessor) Attempt(ctx context.Context, groupID, orderID, userID, leaderID uuid.UUID) (*NoShowResult, error) {
	var result *NoShowResult
	err := p.store.WithinTx(ctx, func(uow *store.UnitOfWork) error {
		order, err := uow.LockOrder(orderID)
		if err != nil {
			return err
		}
		if err := store.CheckOpen(order); err != nil {
			return err
		}
		if order.GroupID != groupID {
			return apperr.New(apperr.KindOrderNotFound, fmt.Sprintf("order %s does not belong to group %s", orderID, groupID))
		}
		if order.LeaderID != leaderID {
			return apperr.ForUser(apperr.KindNotGroupLeader, leaderID, "only the order leader receives penalties")
		}
		if userID == leaderID {
			return apperr.ForUser(apperr.KindUserNotFound, userID, "the leader cannot be penalized on their own order")
		}

		item := order.Item(userID)
		if item == nil {
			return apperr.ForUser(apperr.KindUserNotFound, userID, "no item on this order")
		}
		if item.NoShow {
			return apperr.ForUser(apperr.KindAlreadyNoShow, userID, "penalty was already applied")
		}

		penalty := calculator.Round2(item.FinalAmount.Mul(p.penaltyRate))
		now := p.now()

		if penalty.IsPositive() {
			wallets, err := uow.LockWallets([]uuid.UUID{userID, leaderID})
			if err != nil {
				return err
			}
			for _, id := range []uuid.UUID{userID, leaderID} {
				if wallets[id] == nil {
					return apperr.ForUser(apperr.KindWalletNotFound, id, "wallet does not exist")
				}
			}
			if wallets[userID].Balance.LessThan(penalty) {
				return apperr.ForUser(apperr.KindInsufficientBalance, userID,
					fmt.Sprintf("balance %s does not cover penalty %s", wallets[userID].Balance.StringFixed(2), penalty.StringFixed(2)))
			}

			if err := uow.AdjustBalance(userID, penalty.Neg()); err != nil {
				return err
			}
			if err := uow.AdjustBalance(leaderID, penalty); err != nil {
				return err
			}
			pair := []*models.LedgerEntry{
				{Type: models.EntryTypeDebit, UserID: userID, Description: "no-show penalty"},
				{Type: models.EntryTypeCredit, UserID: leaderID, Description: "no-show penalty received"},
			}
			for _, entry := range pair {
				entry.Amount = penalty
				entry.GroupID = &groupID
				entry.OrderID = &orderID
				entry.Status = models.EntryStatusCompleted
				if err := uow.AppendLedgerEntry(entry); err != nil {
					return err
				}
			}
		}

		if err := uow.MarkNoShow(orderID, userID, penalty, now); err != nil {
			return err
		}

		result = &NoShowResult{
			GroupID:  groupID,
			OrderID:  orderID,
			UserID:   userID,
			LeaderID: leaderID,
			Penalty:  penalty,
			At:       now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
