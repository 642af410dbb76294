package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/ledger"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/notify"
	"github.com/richardliu001/ledger-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	accountNumberLen      = 10
	accountNumberAttempts = 10
	minPINLen             = 4
	maxPINLen             = 12
)

// AccountService opens accounts and manages the PIN and active flag.
type AccountService struct {
	repo     repo.RepositoryInterface
	ledger   *ledger.Ledger
	notifier notify.Notifier
	bankName string
	log      *zap.SugaredLogger

	// swapped in tests
	newNumber func() (string, error)
}

// NewAccountService returns AccountService. n may be nil.
func NewAccountService(r repo.RepositoryInterface, l *ledger.Ledger, n notify.Notifier, bankName string, logger *zap.SugaredLogger) *AccountService {
	return &AccountService{
		repo:      r,
		ledger:    l,
		notifier:  n,
		bankName:  bankName,
		log:       logger,
		newNumber: randomAccountNumber,
	}
}

func randomAccountNumber() (string, error) {
	var sb strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < accountNumberLen; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		// no leading zero
		if i == 0 && n.Int64() == 0 {
			n.SetInt64(1)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

func validateNewPIN(pin string) error {
	if !isDigits(pin) || len(pin) < minPINLen || len(pin) > maxPINLen {
		return apperr.ErrInvalidPinFormat
	}
	return nil
}

// uniqueNumber draws account numbers until one is free in both number
// columns and differs from taken.
func (s *AccountService) uniqueNumber(ctx context.Context, tx *gorm.DB, taken string) (string, error) {
	for i := 0; i < accountNumberAttempts; i++ {
		n, err := s.newNumber()
		if err != nil {
			return "", fmt.Errorf("account number: %w", err)
		}
		if n == taken {
			continue
		}
		used, err := s.repo.AccountNumberTaken(ctx, tx, n)
		if err != nil {
			return "", err
		}
		if !used {
			return n, nil
		}
	}
	return "", fmt.Errorf("account number: no free number after %d attempts", accountNumberAttempts)
}

// OpenAccount creates the single account of userID with fresh checking and
// savings numbers.
func (s *AccountService) OpenAccount(ctx context.Context, userID uuid.UUID, name, pin string) (*model.Account, error) {
	if err := validateNewPIN(pin); err != nil {
		return nil, err
	}
	hash, err := s.ledger.HashPIN(pin)
	if err != nil {
		return nil, err
	}
	var a *model.Account
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.GetAccountByUser(ctx, tx, userID); err == nil {
			return apperr.ErrAccountExists
		} else if !errors.Is(err, apperr.ErrAccountNotFound) {
			return err
		}
		checking, err := s.uniqueNumber(ctx, tx, "")
		if err != nil {
			return err
		}
		savings, err := s.uniqueNumber(ctx, tx, checking)
		if err != nil {
			return err
		}
		a = &model.Account{
			UserID:            userID,
			AccountName:       strings.TrimSpace(name),
			CheckingAccNumber: checking,
			SavingsAccNumber:  savings,
			BankName:          s.bankName,
			PinHash:           hash,
			IsActive:          true,
		}
		return s.repo.CreateAccount(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("account %s opened for user %s", a.ID, userID)
	s.dispatch(ctx, notify.Notification{
		UserID:  userID,
		Title:   "Account Opened",
		Message: fmt.Sprintf("Your %s account is ready.", a.BankName),
		Type:    notify.TypeAccount,
	})
	return a, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID uuid.UUID) (*model.Account, error) {
	return s.repo.GetAccountByUser(ctx, s.repo.DB(ctx), userID)
}

// GetBalance reads through the balance cache. The database read is cached
// under the generation seen before it, so it is ignored once a later commit
// has invalidated the user.
func (s *AccountService) GetBalance(ctx context.Context, userID uuid.UUID) (model.Balances, error) {
	b, gen, err := s.repo.GetCachedBalances(ctx, userID)
	if err == nil {
		return b, nil
	}
	cacheable := errors.Is(err, redis.Nil)
	if !cacheable {
		s.log.Warnf("read cached balances of %s: %v", userID, err)
	}
	a, err := s.repo.GetAccountByUser(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return model.Balances{}, err
	}
	b = a.Balances()
	if cacheable {
		if err := s.repo.CacheBalances(ctx, userID, b, gen); err != nil {
			s.log.Warnf("cache balances of %s: %v", userID, err)
		}
	}
	return b, nil
}

// ChangePIN replaces the PIN after checking the current one on the locked row.
func (s *AccountService) ChangePIN(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := validatePINFormat(current); err != nil {
		return err
	}
	if err := validateNewPIN(next); err != nil {
		return err
	}
	a, err := s.repo.GetAccountByUser(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return err
	}
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.ledger.LockForUpdate(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		if !ledger.CheckPIN(locked, current) {
			s.log.Warnf("pin change for account %s rejected: invalid pin", locked.ID)
			return apperr.ErrInvalidPin
		}
		if ledger.CheckPIN(locked, next) {
			return apperr.ErrSamePin
		}
		hash, err := s.ledger.HashPIN(next)
		if err != nil {
			return err
		}
		return s.repo.UpdateAccountFields(ctx, tx, locked.ID, map[string]interface{}{"pin_hash": hash})
	})
	if err != nil {
		return err
	}
	s.log.Infof("pin changed for account %s", a.ID)
	s.dispatch(ctx, notify.Notification{
		UserID:  userID,
		Title:   "PIN Changed",
		Message: "Your account PIN was changed. Contact support if this was not you.",
		Type:    notify.TypeSecurity,
	})
	return nil
}

// Deactivate soft-disables the account; it is never deleted.
func (s *AccountService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	a, err := s.repo.GetAccountByUser(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return err
	}
	if !a.IsActive {
		return nil
	}
	if err := s.repo.UpdateAccountFields(ctx, s.repo.DB(ctx), a.ID, map[string]interface{}{"is_active": false}); err != nil {
		return err
	}
	if err := s.repo.InvalidateBalances(ctx, userID); err != nil {
		s.log.Warn(err)
	}
	s.log.Infof("account %s deactivated", a.ID)
	return nil
}

func (s *AccountService) dispatch(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warnf("notify user %s %q: %v", n.UserID, n.Title, err)
	}
}
