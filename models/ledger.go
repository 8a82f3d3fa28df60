package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger entry types
const (
	EntryTypeCredit      = "credit"
	EntryTypeDebit       = "debit"
	EntryTypeTransferIn  = "transfer_in"
	EntryTypeTransferOut = "transfer_out"
)

// Ledger entry statuses
const (
	EntryStatusPending   = "pending"
	EntryStatusCompleted = "completed"
	EntryStatusFailed    = "failed"
)

// LedgerEntry is append-only. Rows are never updated once written.
type LedgerEntry struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Type          string           `gorm:"not null;size:20" json:"type"`
	Amount        decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"amount"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	GroupID       *uuid.UUID       `gorm:"type:uuid;index" json:"group_id,omitempty"`
	OrderID       *uuid.UUID       `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Status        string           `gorm:"not null;size:20" json:"status"`
	FailureReason string           `gorm:"size:255" json:"failure_reason,omitempty"`
	PlatformFee   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"platform_fee,omitempty"`
	Description   string           `gorm:"size:255" json:"description,omitempty"`
	CreatedAt     time.Time        `gorm:"index" json:"timestamp"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Signed returns the entry's effect on the owner's balance.
func (e *LedgerEntry) Signed() decimal.Decimal {
	switch e.Type {
	case EntryTypeDebit, EntryTypeTransferOut:
		return e.Amount.Neg()
	default:
		return e.Amount
	}
}
