package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"groupbuy-backend/models"
)

// GetUsers returns the contact records that exist for ids. Unknown ids are
// skipped.
func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// SetFCMToken stores the device token used for push notifications, creating
// the contact record if the user service has not synced it yet.
func (s *Store) SetFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	user := models.User{ID: userID, FCMToken: token}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fcm_token", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("failed to update fcm token: %w", err)
	}
	return nil
}
