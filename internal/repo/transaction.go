package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTransaction inserts t under a savepoint. If the insert loses a race
// on the generated reference, the reference is regenerated and the insert
// retried, up to attempts times.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction, attempts int) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if attempts < 1 {
		attempts = 1
	}
	generated := t.Reference == ""
	for i := 0; i < attempts; i++ {
		err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return sp.Omit(clause.Associations).Create(t).Error
		})
		if err == nil {
			return nil
		}
		if !generated || !isUniqueViolation(err) {
			return classify(err)
		}
		taken, cerr := r.referenceTaken(ctx, tx, t.Reference)
		if cerr != nil {
			return cerr
		}
		if !taken {
			return err
		}
		r.log.Warnf("reference %s collided on insert, regenerating (attempt %d)", t.Reference, i+1)
		t.Reference = ""
	}
	return apperr.ErrDuplicateReference
}

func (r *Repository) referenceTaken(ctx context.Context, tx *gorm.DB, ref string) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Transaction{}).Where("reference = ?", ref).Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateMeta(ctx context.Context, tx *gorm.DB, m *model.TransactionMeta) error {
	return tx.WithContext(ctx).Create(m).Error
}

func (r *Repository) GetTransactionByReference(ctx context.Context, tx *gorm.DB, ref string) (*model.Transaction, error) {
	var t model.Transaction
	if err := tx.WithContext(ctx).Preload("Meta").Where("reference = ?", ref).First(&t).Error; err != nil {
		return nil, notFound(err, apperr.ErrTransactionNotFound)
	}
	return &t, nil
}

// GetTransactionForUpdate locks the transaction row so status changes serialize.
func (r *Repository) GetTransactionForUpdate(ctx context.Context, tx *gorm.DB, ref string) (*model.Transaction, error) {
	var t model.Transaction
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", ref).First(&t).Error; err != nil {
		return nil, notFound(err, apperr.ErrTransactionNotFound)
	}
	return &t, nil
}

// TxExists checks duplicate by idem key.
func (r *Repository) TxExists(ctx context.Context, tx *gorm.DB, idemKey string) (bool, *model.Transaction, error) {
	if idemKey == "" {
		return false, nil, nil
	}
	var t model.Transaction
	err := tx.WithContext(ctx).Preload("Meta").Where("idempotency_key = ?", idemKey).First(&t).Error
	if err == nil {
		return true, &t, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	return false, nil, err
}

func (r *Repository) UpdateTransactionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.Status, errMsg string) error {
	fields := map[string]interface{}{"status": status}
	if errMsg != "" {
		fields["error_message"] = errMsg
	}
	res := tx.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrTransactionNotFound
	}
	return nil
}
