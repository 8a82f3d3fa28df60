package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
)

// UnitOfWork is a typed view over one open transaction: reads that check
// preconditions and writes that commit or roll back together.
type UnitOfWork struct {
	tx       *gorm.DB
	rowLocks bool
}

// LockOrder loads an order with its items and locks the order row.
func (u *UnitOfWork) LockOrder(orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := u.locked().Preload("Items").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindOrderNotFound, fmt.Sprintf("order %s does not exist", orderID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// LockGroup loads a group with its members and locks the group row.
func (u *UnitOfWork) LockGroup(groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := u.locked().Preload("Members").First(&group, "id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindGroupNotFound, fmt.Sprintf("group %s does not exist", groupID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}

// LockWallets locks the wallets of userIDs in ascending id order, so two
// transactions touching overlapping wallets always queue instead of
// deadlocking. Missing wallets are simply absent from the result.
func (u *UnitOfWork) LockWallets(userIDs []uuid.UUID) (map[uuid.UUID]*models.Wallet, error) {
	ids := sortedUnique(userIDs)
	wallets := make(map[uuid.UUID]*models.Wallet, len(ids))
	if len(ids) == 0 {
		return wallets, nil
	}

	var rows []models.Wallet
	if err := u.locked().Where("user_id IN ?", ids).Order("user_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	for i := range rows {
		wallets[rows[i].UserID] = &rows[i]
	}
	return wallets, nil
}

// AdjustBalance applies delta to a wallet in SQL. Negative deltas only apply
// while the balance covers them, so a wallet can never go below zero even
// if another transaction moved money since it was read.
func (u *UnitOfWork) AdjustBalance(userID uuid.UUID, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	q := u.tx.Model(&models.Wallet{}).Where("user_id = ?", userID)
	if delta.IsNegative() {
		q = q.Where("balance >= ?", delta.Neg())
	}
	res := q.Updates(map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to adjust wallet %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := u.tx.Model(&models.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check wallet %s: %w", userID, err)
	}
	if count == 0 {
		return apperr.ForUser(apperr.KindWalletNotFound, userID, "wallet does not exist")
	}
	return apperr.ForUser(apperr.KindInsufficientBalance, userID, fmt.Sprintf("balance does not cover %s", delta.Neg().StringFixed(2)))
}

// AppendLedgerEntry writes an immutable ledger row.
func (u *UnitOfWork) AppendLedgerEntry(entry *models.LedgerEntry) error {
	if !entry.Amount.IsPositive() {
		return apperr.ForField(apperr.KindInvalidAmount, "amount", "ledger amounts must be positive")
	}
	switch entry.Type {
	case models.EntryTypeCredit, models.EntryTypeDebit, models.EntryTypeTransferIn, models.EntryTypeTransferOut:
	default:
		return fmt.Errorf("unknown ledger entry type %q", entry.Type)
	}
	if entry.Status == "" {
		entry.Status = models.EntryStatusCompleted
	}
	if err := u.tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// CompleteOrder flips an open order to completed. The status guard makes a
// second committer affect zero rows; that is reported as a conflict.
func (u *UnitOfWork) CompleteOrder(orderID uuid.UUID, fee decimal.Decimal, at time.Time) error {
	res := u.tx.Model(&models.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, []string{models.OrderStatusCompleted, models.OrderStatusCancelled}).
		Updates(map[string]interface{}{
			"status":       models.OrderStatusCompleted,
			"platform_fee": fee,
			"completed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete order: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("order %s changed during settlement: %w", orderID, apperr.ErrConflict)
	}
	return nil
}

// MarkNoShow flags a member's item. The no_show guard makes a concurrent
// second penalty affect zero rows.
func (u *UnitOfWork) MarkNoShow(orderID, userID uuid.UUID, penalty decimal.Decimal, at time.Time) error {
	res := u.tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND user_id = ? AND no_show = ?", orderID, userID, false).
		Updates(map[string]interface{}{
			"no_show":         true,
			"no_show_penalty": penalty,
			"no_show_at":      at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark no-show: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("item %s/%s changed during no-show: %w", orderID, userID, apperr.ErrConflict)
	}
	return nil
}

// UpdateOrder applies a column patch to an order.
func (u *UnitOfWork) UpdateOrder(orderID uuid.UUID, patch map[string]interface{}) error {
	if err := u.tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// UpdateGroup applies a column patch to a group.
func (u *UnitOfWork) UpdateGroup(groupID uuid.UUID, patch map[string]interface{}) error {
	if err := u.tx.Model(&models.Group{}).Where("id = ?", groupID).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group and its membership rows.
func (u *UnitOfWork) DeleteGroup(groupID uuid.UUID) error {
	if err := u.tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}
	res := u.tx.Delete(&models.Group{}, "id = ?", groupID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete group: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("group %s vanished during settlement: %w", groupID, apperr.ErrConflict)
	}
	return nil
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
