package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	GroupStatusOpen      = "open"
	GroupStatusOrdering  = "ordering"
	GroupStatusOrdered   = "ordered"
	GroupStatusCompleted = "completed"
	GroupStatusCancelled = "cancelled"
)

type Group struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string          `gorm:"not null;size:100" json:"name"`
	MemberCount  int             `gorm:"not null;default:0" json:"member_count"`
	MaxMembers   int             `gorm:"not null;default:0" json:"max_members,omitempty"` // 0 = unlimited
	Status       string          `gorm:"not null;default:open;size:20;index" json:"status"`
	TargetAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"target_amount"`
	CreatedBy    uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"` // leader
	Members      []GroupMember   `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// ActiveMembers returns the ids of members whose active flag is set.
func (g *Group) ActiveMembers() []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range g.Members {
		if m.Active {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// IsActiveMember reports whether userID is an active member of the group.
func (g *Group) IsActiveMember(userID uuid.UUID) bool {
	for _, m := range g.Members {
		if m.UserID == userID && m.Active {
			return true
		}
	}
	return false
}

type GroupMember struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Active   bool      `gorm:"not null;default:true" json:"active"`
	Role     string    `gorm:"default:member;size:20" json:"role"` // leader, member
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Request structs
type CreateGroupRequest struct {
	Name         string          `json:"name" binding:"required"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	MaxMembers   int             `json:"max_members"`
}

type UpdateGroupStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open ordering ordered cancelled"`
}
