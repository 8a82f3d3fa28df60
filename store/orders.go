package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
)

// CreateOrder records the leader's purchase confirmation for an ordered
// group. Every item must belong to an active member.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		group, err := uow.LockGroup(order.GroupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupStatusOrdered {
			return apperr.New(apperr.KindInvalidGroupStatus, fmt.Sprintf("group is %s, not ordered", group.Status))
		}
		if group.CreatedBy != order.LeaderID {
			return apperr.ForUser(apperr.KindNotGroupLeader, order.LeaderID, "only the group leader can place the order")
		}

		var open int64
		err = uow.tx.Model(&models.Order{}).
			Where("group_id = ? AND status NOT IN ?", order.GroupID, []string{models.OrderStatusCompleted, models.OrderStatusCancelled}).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("failed to check open orders: %w", err)
		}
		if open > 0 {
			return apperr.New(apperr.KindInvalidGroupStatus, "group already has an active order")
		}

		total := decimal.Zero
		seen := make(map[uuid.UUID]bool, len(order.Items))
		for i := range order.Items {
			item := &order.Items[i]
			if !group.IsActiveMember(item.UserID) {
				return apperr.ForUser(apperr.KindUserNotFound, item.UserID, "not an active member of the group")
			}
			if seen[item.UserID] {
				return &apperr.Error{Kind: apperr.KindInvalidItems, UserID: item.UserID, Field: "items", Msg: "duplicate item for member"}
			}
			if item.ItemMRP.IsNegative() {
				return &apperr.Error{Kind: apperr.KindInvalidItems, UserID: item.UserID, Field: "item_mrp", Msg: "item MRP cannot be negative"}
			}
			seen[item.UserID] = true
			item.FinalAmount = item.ItemMRP
			total = total.Add(item.ItemMRP)
		}

		order.Status = models.OrderStatusPending
		order.TotalAmount = total
		if err := uow.tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindOrderNotFound, fmt.Sprintf("order %s does not exist", orderID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// SaveSplits stores computed splits on the order's items, clears previous
// approvals and moves the order to splitting.
func (s *Store) SaveSplits(ctx context.Context, orderID uuid.UUID, splits []models.OrderSplit, totalTax, totalDiscount decimal.Decimal) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		order, err := uow.LockOrder(orderID)
		if err != nil {
			return err
		}
		if err := checkOpen(order); err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusSplitting {
			return apperr.New(apperr.KindInvalidItems, fmt.Sprintf("splits are locked once the order is %s", order.Status))
		}
		if len(splits) != len(order.Items) {
			return apperr.ForField(apperr.KindInvalidItems, "items", "splits must cover every order item")
		}

		total := decimal.Zero
		for _, split := range splits {
			if order.Item(split.UserID) == nil {
				return apperr.ForUser(apperr.KindUserNotFound, split.UserID, "no item on this order")
			}
			err := uow.tx.Model(&models.OrderItem{}).
				Where("order_id = ? AND user_id = ?", orderID, split.UserID).
				Updates(map[string]interface{}{
					"tax_share":      split.TaxShare,
					"discount_share": split.DiscountShare,
					"final_amount":   split.FinalAmount,
					"approved":       false,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to store split: %w", err)
			}
			total = total.Add(split.FinalAmount)
		}

		return uow.UpdateOrder(orderID, map[string]interface{}{
			"status":       models.OrderStatusSplitting,
			"total_amount": total,
			"total_tax":    totalTax,
			"discount":     totalDiscount,
		})
	})
}

// ApproveSplit records a member's approval of their own split. Once every
// member has approved, the order moves to delivering. It returns the order
// as stored after the change.
func (s *Store) ApproveSplit(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var result *models.Order
	err := s.WithinTx(ctx, func(uow *UnitOfWork) error {
		order, err := uow.LockOrder(orderID)
		if err != nil {
			return err
		}
		if err := checkOpen(order); err != nil {
			return err
		}
		if order.Status != models.OrderStatusSplitting {
			return apperr.New(apperr.KindInvalidItems, fmt.Sprintf("order is %s, splits are not up for approval", order.Status))
		}
		item := order.Item(userID)
		if item == nil {
			return apperr.ForUser(apperr.KindUserNotFound, userID, "no item on this order")
		}

		err = uow.tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND user_id = ?", orderID, userID).
			Update("approved", true).Error
		if err != nil {
			return fmt.Errorf("failed to approve split: %w", err)
		}
		item.Approved = true

		allApproved := true
		for _, it := range order.Items {
			if !it.Approved {
				allApproved = false
				break
			}
		}
		if allApproved {
			if err := uow.UpdateOrder(orderID, map[string]interface{}{"status": models.OrderStatusDelivering}); err != nil {
				return err
			}
			order.Status = models.OrderStatusDelivering
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkReceived records that a member collected their items.
func (s *Store) MarkReceived(ctx context.Context, orderID, userID uuid.UUID) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		order, err := uow.LockOrder(orderID)
		if err != nil {
			return err
		}
		if err := checkOpen(order); err != nil {
			return err
		}
		item := order.Item(userID)
		if item == nil {
			return apperr.ForUser(apperr.KindUserNotFound, userID, "no item on this order")
		}
		if item.NoShow {
			return apperr.ForUser(apperr.KindAlreadyNoShow, userID, "member was already marked as a no-show")
		}
		err = uow.tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND user_id = ?", orderID, userID).
			Update("received", true).Error
		if err != nil {
			return fmt.Errorf("failed to mark received: %w", err)
		}
		return nil
	})
}

// CancelOrder cancels an order that has not been settled.
func (s *Store) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		order, err := uow.LockOrder(orderID)
		if err != nil {
			return err
		}
		if err := checkOpen(order); err != nil {
			return err
		}
		return uow.UpdateOrder(orderID, map[string]interface{}{"status": models.OrderStatusCancelled})
	})
}

// checkOpen rejects orders that are already completed or cancelled.
func checkOpen(order *models.Order) error {
	switch order.Status {
	case models.OrderStatusCompleted:
		return apperr.New(apperr.KindOrderCompleted, fmt.Sprintf("order %s is already completed", order.ID))
	case models.OrderStatusCancelled:
		return apperr.New(apperr.KindOrderCancelled, fmt.Sprintf("order %s was cancelled", order.ID))
	}
	return nil
}

// CheckOpen is checkOpen for callers outside the package.
func CheckOpen(order *models.Order) error {
	return checkOpen(order)
}
