package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the contact record owned by the user service. This backend only
// reads it to address notifications.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255" json:"email"`
	Name      string    `gorm:"size:100" json:"name"`
	FCMToken  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
