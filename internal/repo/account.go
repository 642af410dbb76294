package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateAccount inserts a; a second account for the same user is ErrAccountExists.
func (r *Repository) CreateAccount(ctx context.Context, tx *gorm.DB, a *model.Account) error {
	err := tx.WithContext(ctx).Create(a).Error
	if err != nil && isUniqueViolation(err) {
		var n int64
		if cerr := tx.WithContext(ctx).Model(&model.Account{}).Where("user_id = ?", a.UserID).Count(&n).Error; cerr == nil && n > 0 {
			return apperr.ErrAccountExists
		}
	}
	return err
}

func (r *Repository) GetAccount(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound)
	}
	return &a, nil
}

func (r *Repository) GetAccountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.Account, error) {
	var a model.Account
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error; err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound)
	}
	return &a, nil
}

// GetAccountForUpdate locks account row.
func (r *Repository) GetAccountForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound)
	}
	return &a, nil
}

// FindAccountByNumber matches number against both the checking and the
// savings account number. The read is advisory; callers lock afterwards.
func (r *Repository) FindAccountByNumber(ctx context.Context, tx *gorm.DB, number string) (*model.Account, error) {
	var a model.Account
	err := tx.WithContext(ctx).
		Where("checking_acc_number = ? OR savings_acc_number = ?", number, number).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound)
	}
	return &a, nil
}

func (r *Repository) AccountNumberTaken(ctx context.Context, tx *gorm.DB, number string) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Account{}).
		Where("checking_acc_number = ? OR savings_acc_number = ?", number, number).
		Count(&n).Error
	return n > 0, err
}

// UpdateBalance writes a balance computed from a locked read.
func (r *Repository) UpdateBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, sub model.SubAccount, newBalance decimal.Decimal) error {
	col := sub.Column()
	if col == "" {
		return apperr.ErrInvalidAccountType
	}
	res := tx.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			col:          newBalance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrAccountNotFound
	}
	return nil
}

// IncrementBalance adds delta with a single col = col + ? update, so
// concurrent credits never overwrite each other, and returns the new balance.
func (r *Repository) IncrementBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, sub model.SubAccount, delta decimal.Decimal) (decimal.Decimal, error) {
	col := sub.Column()
	if col == "" {
		return decimal.Zero, apperr.ErrInvalidAccountType
	}
	res := tx.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", delta),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return decimal.Zero, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, apperr.ErrAccountNotFound
	}
	var bal decimal.Decimal
	if err := tx.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Select(col).Row().Scan(&bal); err != nil {
		return decimal.Zero, err
	}
	return bal, nil
}

func (r *Repository) UpdateAccountFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	res := tx.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrAccountNotFound
	}
	return nil
}
