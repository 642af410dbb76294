package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/model"
	"gorm.io/gorm"
)

func (r *Repository) CreateHistory(ctx context.Context, tx *gorm.DB, h *model.TransactionHistory) error {
	return tx.WithContext(ctx).Omit("Transaction").Create(h).Error
}

// ListTransactionHistory returns the rows of one transaction, oldest first.
func (r *Repository) ListTransactionHistory(ctx context.Context, tx *gorm.DB, txID uuid.UUID) ([]model.TransactionHistory, error) {
	var rows []model.TransactionHistory
	err := tx.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at asc").
		Find(&rows).Error
	return rows, err
}

// SaveHistory updates metadata and note of an existing row in place.
func (r *Repository) SaveHistory(ctx context.Context, tx *gorm.DB, h *model.TransactionHistory) error {
	return tx.WithContext(ctx).Model(h).
		Select("metadata", "note", "updated_at").
		Updates(h).Error
}

// ListHistoryForUser returns history rows of transactions the user initiated
// or whose source or destination is accountID, newest first.
func (r *Repository) ListHistoryForUser(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, limit int) ([]model.TransactionHistory, error) {
	q := r.db.WithContext(ctx).
		Joins("JOIN transactions ON transactions.id = transaction_history.transaction_id")
	if accountID != nil {
		q = q.Where("transactions.initiated_by = ? OR transactions.source_account_id = ? OR transactions.destination_account_id = ?",
			userID, *accountID, *accountID)
	} else {
		q = q.Where("transactions.initiated_by = ?", userID)
	}
	var rows []model.TransactionHistory
	err := q.Preload("Transaction").
		Order("transaction_history.created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
