// Package settlement moves money once a group order is agreed: member debits
// and the leader payout at completion, and penalty transfers for members who
// never collected their items.
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"groupbuy-backend/apperr"
	"groupbuy-backend/calculator"
	"groupbuy-backend/models"
	"groupbuy-backend/store"
)

// Group handling after a successful settlement.
const (
	GroupArchive = "archive"
	GroupDelete  = "delete"
)

// Transfer is one wallet movement made by a settlement.
type Transfer struct {
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Result describes a committed settlement.
type Result struct {
	GroupID     uuid.UUID       `json:"group_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	LeaderID    uuid.UUID       `json:"leader_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Payout      decimal.Decimal `json:"payout"`
	Debits      []Transfer      `json:"debits"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Coordinator runs a single settlement attempt. It does not retry; Engine
// wraps it for that.
type Coordinator struct {
	store      *store.Store
	feeRate    decimal.Decimal
	groupAfter string
	now        func() time.Time
}

func NewCoordinator(s *store.Store, feeRate decimal.Decimal, groupAfter string) *Coordinator {
	if groupAfter != GroupDelete {
		groupAfter = GroupArchive
	}
	return &Coordinator{store: s, feeRate: feeRate, groupAfter: groupAfter, now: time.Now}
}

// Attempt settles orderID in one transaction: every non-leader member is
// debited their final amount and the leader is credited the total less the
// platform fee. Nothing is written unless every check passes.
func (c *Coordinator) Attempt(ctx context.Context, groupID, orderID, leaderID uuid.UUID, splits []models.OrderSplit) (*Result, error) {
	var result *Result
	err := c.store.WithinTx(ctx, func(uow *store.UnitOfWork) error {
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

		group, err := uow.LockGroup(groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupStatusOrdered {
			return apperr.New(apperr.KindInvalidGroupStatus, fmt.Sprintf("group is %s, not ordered", group.Status))
		}
		if order.LeaderID != leaderID {
			return apperr.ForUser(apperr.KindNotGroupLeader, leaderID, "only the order leader can settle it")
		}
		if len(splits) == 0 {
			return apperr.ForField(apperr.KindInvalidItems, "splits", "no splits to settle")
		}

		// The caller's splits must be exactly the stored ones: one per item,
		// same amounts. Money moves from the stored rows.
		if err := matchStoredSplits(order, splits); err != nil {
			return err
		}
		splits = order.Splits()

		ids := make([]uuid.UUID, 0, len(splits)+1)
		ids = append(ids, leaderID)
		for _, split := range splits {
			ids = append(ids, split.UserID)
		}
		wallets, err := uow.LockWallets(ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if wallets[id] == nil {
				return apperr.ForUser(apperr.KindWalletNotFound, id, "wallet does not exist")
			}
		}

		for _, split := range splits {
			if !split.Approved {
				return apperr.ForUser(apperr.KindSplitsNotApproved, split.UserID, "split has not been approved")
			}
		}

		debits := memberDebits(splits, leaderID)
		for _, d := range debits {
			if wallets[d.UserID].Balance.LessThan(d.Amount) {
				return apperr.ForUser(apperr.KindInsufficientBalance, d.UserID,
					fmt.Sprintf("balance %s does not cover %s", wallets[d.UserID].Balance.StringFixed(2), d.Amount.StringFixed(2)))
			}
		}

		total := calculator.Total(splits)
		fee := calculator.Round2(total.Mul(c.feeRate))
		payout := total.Sub(fee)
		now := c.now()

		for _, d := range debits {
			if !d.Amount.IsPositive() {
				continue
			}
			if err := uow.AdjustBalance(d.UserID, d.Amount.Neg()); err != nil {
				return err
			}
			err := uow.AppendLedgerEntry(&models.LedgerEntry{
				Type:        models.EntryTypeDebit,
				Amount:      d.Amount,
				UserID:      d.UserID,
				GroupID:     &groupID,
				OrderID:     &orderID,
				Status:      models.EntryStatusCompleted,
				Description: "group order settlement",
			})
			if err != nil {
				return err
			}
		}

		if payout.IsPositive() {
			if err := uow.AdjustBalance(leaderID, payout); err != nil {
				return err
			}
			err := uow.AppendLedgerEntry(&models.LedgerEntry{
				Type:        models.EntryTypeCredit,
				Amount:      payout,
				UserID:      leaderID,
				GroupID:     &groupID,
				OrderID:     &orderID,
				Status:      models.EntryStatusCompleted,
				PlatformFee: &fee,
				Description: "group order payout",
			})
			if err != nil {
				return err
			}
		}

		if err := uow.CompleteOrder(orderID, fee, now); err != nil {
			return err
		}
		if c.groupAfter == GroupDelete {
			err = uow.DeleteGroup(groupID)
		} else {
			err = uow.UpdateGroup(groupID, map[string]interface{}{"status": models.GroupStatusCompleted})
		}
		if err != nil {
			return err
		}

		result = &Result{
			GroupID:     groupID,
			OrderID:     orderID,
			LeaderID:    leaderID,
			TotalAmount: total,
			PlatformFee: fee,
			Payout:      payout,
			Debits:      debits,
			CompletedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// matchStoredSplits checks that splits name every item of the order once,
// with the amount stored for it.
func matchStoredSplits(order *models.Order, splits []models.OrderSplit) error {
	seen := make(map[uuid.UUID]bool, len(splits))
	for _, split := range splits {
		item := order.Item(split.UserID)
		if item == nil {
			return apperr.ForUser(apperr.KindUserNotFound, split.UserID, "no item on this order")
		}
		if seen[split.UserID] {
			return &apperr.Error{Kind: apperr.KindInvalidItems, UserID: split.UserID, Field: "splits", Msg: "duplicate split"}
		}
		seen[split.UserID] = true
		if !split.FinalAmount.Equal(item.FinalAmount) {
			return &apperr.Error{Kind: apperr.KindInvalidItems, UserID: split.UserID, Field: "final_amount",
				Msg: fmt.Sprintf("split amount %s differs from the stored %s", split.FinalAmount.StringFixed(2), item.FinalAmount.StringFixed(2))}
		}
	}
	for _, item := range order.Items {
		if !seen[item.UserID] {
			return apperr.ForUser(apperr.KindSplitsNotApproved, item.UserID, "split missing from settlement")
		}
	}
	return nil
}

// memberDebits returns what each non-leader member owes, in user id order.
// Splits for the same member are summed.
func memberDebits(splits []models.OrderSplit, leaderID uuid.UUID) []Transfer {
	owed := make(map[uuid.UUID]decimal.Decimal)
	for _, split := range splits {
		if split.UserID == leaderID {
			continue
		}
		owed[split.UserID] = owed[split.UserID].Add(split.FinalAmount)
	}
	debits := make([]Transfer, 0, len(owed))
	for id, amount := range owed {
		debits = append(debits, Transfer{UserID: id, Amount: amount})
	}
	sort.Slice(debits, func(i, j int) bool {
		return debits[i].UserID.String() < debits[j].UserID.String()
	})
	return debits
}
