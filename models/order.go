package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusSplitting  = "splitting"
	OrderStatusDelivering = "delivering"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"group_id"`
	LeaderID    uuid.UUID        `gorm:"type:uuid;not null" json:"leader_id"`
	TotalAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	TotalTax    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_tax"`
	Discount    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Screenshot  string           `gorm:"size:512" json:"screenshot,omitempty"`
	Status      string           `gorm:"not null;default:pending;size:20" json:"status"`
	PlatformFee *decimal.Decimal `gorm:"type:decimal(12,2)" json:"platform_fee,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Items       []OrderItem      `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Item returns the item belonging to userID, or nil.
func (o *Order) Item(userID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].UserID == userID {
			return &o.Items[i]
		}
	}
	return nil
}

// Splits builds the order's current splits from its stored items.
func (o *Order) Splits() []OrderSplit {
	splits := make([]OrderSplit, 0, len(o.Items))
	for _, item := range o.Items {
		splits = append(splits, OrderSplit{
			UserID:         item.UserID,
			OriginalAmount: item.ItemMRP,
			TaxShare:       item.TaxShare,
			DiscountShare:  item.DiscountShare,
			FinalAmount:    item.FinalAmount,
			Approved:       item.Approved,
		})
	}
	return splits
}

type OrderItem struct {
	OrderID       uuid.UUID        `gorm:"type:uuid;primaryKey" json:"order_id"`
	UserID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"user_id"`
	ItemMRP       decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"item_mrp"`
	TaxShare      decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"tax_share"`
	DiscountShare decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount_share"`
	FinalAmount   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"final_amount"`
	Approved      bool             `gorm:"not null;default:false" json:"approved"`
	Received      bool             `gorm:"not null;default:false" json:"received"`
	NoShow        bool             `gorm:"not null;default:false" json:"no_show"`
	NoShowPenalty *decimal.Decimal `gorm:"type:decimal(12,2)" json:"no_show_penalty,omitempty"`
	NoShowAt      *time.Time       `json:"no_show_at,omitempty"`
}

// OrderSplit is one member's computed share of an order.
// FinalAmount = OriginalAmount + TaxShare - DiscountShare.
type OrderSplit struct {
	UserID         uuid.UUID       `json:"user_id"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	TaxShare       decimal.Decimal `json:"tax_share"`
	DiscountShare  decimal.Decimal `json:"discount_share"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Approved       bool            `json:"approved"`
}

// Request structs
type CreateOrderRequest struct {
	Screenshot string             `json:"screenshot" binding:"required"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderItemRequest struct {
	UserID  string          `json:"user_id" binding:"required"`
	ItemMRP decimal.Decimal `json:"item_mrp"`
}

type SplitRequest struct {
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

type SplitPreviewRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalTax      decimal.Decimal    `json:"total_tax"`
	TotalDiscount decimal.Decimal    `json:"total_discount"`
}
