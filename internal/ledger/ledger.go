// Package ledger guards every balance mutation: row locks, PIN checks and
// the debit/credit primitives. It never notifies anyone.
package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Ledger struct {
	repo    repo.RepositoryInterface
	pinCost int
	log     *zap.SugaredLogger
}

func New(r repo.RepositoryInterface, pinCost int, logger *zap.SugaredLogger) *Ledger {
	if pinCost < bcrypt.MinCost {
		pinCost = bcrypt.DefaultCost
	}
	return &Ledger{repo: r, pinCost: pinCost, log: logger}
}

// LockForUpdate takes the row lock on accountID for the rest of tx.
func (l *Ledger) LockForUpdate(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (*model.Account, error) {
	return l.repo.GetAccountForUpdate(ctx, tx, accountID)
}

// LockPair locks a and b in ascending id order, so two transfers between the
// same accounts in opposite directions cannot deadlock. The accounts are
// returned in argument order.
func (l *Ledger) LockPair(ctx context.Context, tx *gorm.DB, a, b uuid.UUID) (*model.Account, *model.Account, error) {
	first, second := a, b
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	w1, err := l.LockForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := l.LockForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// HashPIN hashes a raw PIN for storage.
func (l *Ledger) HashPIN(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), l.pinCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

// CheckPIN compares raw against the stored hash. Any error is a mismatch.
func CheckPIN(a *model.Account, raw string) bool {
	if a == nil || a.PinHash == "" || raw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PinHash), []byte(raw)) == nil
}

// Debit takes amount out of sub on a locked account. Amounts must be whole
// cents (model.ValidAmount) and the balance must stay strictly above zero
// after the debit (balance > amount).
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, a *model.Account, sub model.SubAccount, amount decimal.Decimal) error {
	if !model.ValidAmount(amount) {
		return apperr.ErrInvalidAmount
	}
	if !sub.Valid() {
		return apperr.ErrInvalidAccountType
	}
	bal := a.Balance(sub)
	if !bal.GreaterThan(amount) {
		return fmt.Errorf("%w in %s", apperr.ErrInsufficientFunds, sub)
	}
	newBal := bal.Sub(amount)
	if err := l.repo.UpdateBalance(ctx, tx, a.ID, sub, newBal); err != nil {
		return err
	}
	a.SetBalance(sub, newBal)
	a.Version++
	return nil
}

// Credit adds amount to sub with an atomic increment and returns the new
// balance. The caller must hold the row lock if the result feeds a decision.
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, sub model.SubAccount, amount decimal.Decimal) (decimal.Decimal, error) {
	if !model.ValidAmount(amount) {
		return decimal.Zero, apperr.ErrInvalidAmount
	}
	if !sub.Valid() {
		return decimal.Zero, apperr.ErrInvalidAccountType
	}
	return l.repo.IncrementBalance(ctx, tx, accountID, sub, amount)
}
