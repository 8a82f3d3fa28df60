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

// EnsureWallet creates an empty wallet for userID if none exists.
func (s *Store) EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := models.Wallet{UserID: userID, Balance: decimal.Zero}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&wallet).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return s.GetWallet(ctx, userID)
}

func (s *Store) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ForUser(apperr.KindWalletNotFound, userID, "wallet does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// Deposit credits funds that were collected by the payment gateway.
func (s *Store) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*models.LedgerEntry, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, apperr.ForField(apperr.KindInvalidAmount, "amount", "deposit must be positive with at most two decimals")
	}
	if _, err := s.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		Type:        models.EntryTypeCredit,
		Amount:      amount,
		UserID:      userID,
		Status:      models.EntryStatusCompleted,
		Description: "wallet top-up " + reference,
	}
	err := s.WithinTx(ctx, func(uow *UnitOfWork) error {
		if err := uow.AdjustBalance(userID, amount); err != nil {
			return err
		}
		return uow.AppendLedgerEntry(entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedgerEntries returns a user's ledger, newest first.
func (s *Store) ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// LedgerEntriesForOrder returns every ledger row tagged with orderID.
func (s *Store) LedgerEntriesForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list order ledger entries: %w", err)
	}
	return entries, nil
}

// LedgerBalance sums a user's completed entries. It equals the wallet
// balance whenever every mutation went through the engine.
func (s *Store) LedgerBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.EntryStatusCompleted).
		Find(&entries).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Signed())
	}
	return total, nil
}
