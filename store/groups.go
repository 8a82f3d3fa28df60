package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"groupbuy-backend/apperr"
	"groupbuy-backend/models"
)

// Allowed manual status changes. completed is only reached through settlement.
var groupTransitions = map[string][]string{
	models.GroupStatusOpen:     {models.GroupStatusOrdering, models.GroupStatusCancelled},
	models.GroupStatusOrdering: {models.GroupStatusOpen, models.GroupStatusOrdered, models.GroupStatusCancelled},
	models.GroupStatusOrdered:  {models.GroupStatusCancelled},
}

// CreateGroup stores a new open group with the leader as its first member.
// collateral is the balance the leader must hold; zero disables the check.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group, collateral decimal.Decimal) error {
	if err := s.checkCollateral(ctx, group.CreatedBy, collateral); err != nil {
		return err
	}

	group.Status = models.GroupStatusOpen
	group.MemberCount = 1
	group.Members = []models.GroupMember{{UserID: group.CreatedBy, Active: true, Role: "leader"}}

	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindGroupNotFound, fmt.Sprintf("group %s does not exist", groupID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// JoinGroup adds userID as an active member of an open group and keeps
// member_count equal to the number of active members.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID uuid.UUID, collateral decimal.Decimal) error {
	if err := s.checkCollateral(ctx, userID, collateral); err != nil {
		return err
	}

	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		group, err := uow.LockGroup(groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupStatusOpen {
			return apperr.New(apperr.KindInvalidGroupStatus, fmt.Sprintf("group is %s, not open", group.Status))
		}
		if group.IsActiveMember(userID) {
			return nil
		}
		if group.MaxMembers > 0 && group.MemberCount >= group.MaxMembers {
			return apperr.New(apperr.KindGroupFull, fmt.Sprintf("group already has %d members", group.MemberCount))
		}

		member := models.GroupMember{GroupID: groupID, UserID: userID, Active: true, Role: "member"}
		err = uow.tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active"}),
		}).Create(&member).Error
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		return uow.UpdateGroup(groupID, map[string]interface{}{"member_count": gorm.Expr("member_count + 1")})
	})
}

// LeaveGroup deactivates a member. The leader cannot leave.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		group, err := uow.LockGroup(groupID)
		if err != nil {
			return err
		}
		if group.CreatedBy == userID {
			return apperr.ForUser(apperr.KindInvalidGroupStatus, userID, "the leader cannot leave the group")
		}
		if group.Status != models.GroupStatusOpen && group.Status != models.GroupStatusOrdering {
			return apperr.New(apperr.KindInvalidGroupStatus, fmt.Sprintf("cannot leave a group that is %s", group.Status))
		}
		if !group.IsActiveMember(userID) {
			return apperr.ForUser(apperr.KindUserNotFound, userID, "not a member of this group")
		}

		err = uow.tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Update("active", false).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate member: %w", err)
		}
		return uow.UpdateGroup(groupID, map[string]interface{}{"member_count": gorm.Expr("member_count - 1")})
	})
}

// SetGroupStatus moves a group along open -> ordering -> ordered, or to cancelled.
func (s *Store) SetGroupStatus(ctx context.Context, groupID uuid.UUID, status string) error {
	return s.WithinTx(ctx, func(uow *UnitOfWork) error {
		group, err := uow.LockGroup(groupID)
		if err != nil {
			return err
		}
		if group.Status == status {
			return nil
		}
		allowed := false
		for _, next := range groupTransitions[group.Status] {
			if next == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperr.New(apperr.KindInvalidGroupStatus, fmt.Sprintf("cannot move group from %s to %s", group.Status, status))
		}
		return uow.UpdateGroup(groupID, map[string]interface{}{"status": status})
	})
}

func (s *Store) checkCollateral(ctx context.Context, userID uuid.UUID, collateral decimal.Decimal) error {
	if !collateral.IsPositive() {
		return nil
	}
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	if wallet.Balance.LessThan(collateral) {
		return apperr.ForUser(apperr.KindInsufficientCollateral, userID,
			fmt.Sprintf("balance %s is below the required collateral %s", wallet.Balance.StringFixed(2), collateral.StringFixed(2)))
	}
	return nil
}
