package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/ledger"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/notify"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func keyPtr(k string) *string {
	if k == "" {
		return nil
	}
	return &k
}

// CreateDeposit records money announced from outside the bank. Nothing is
// credited until the deposit is confirmed.
func (e *TransferEngine) CreateDeposit(ctx context.Context, userID uuid.UUID, req DepositRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(req.Currency, e.currency)
	if err != nil {
		return nil, err
	}
	acct, err := e.activeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		t        *model.Transaction
		replayed bool
	)
	err = e.atomic(ctx, func(tx *gorm.DB) error {
		prev, err := e.replay(ctx, tx, req.IdempotencyKey, userID, model.CategoryDeposit, req.Amount)
		if err != nil {
			return err
		}
		if prev != nil {
			t, replayed = prev, true
			return nil
		}
		dest := acct.ID
		t = &model.Transaction{
			Category:             model.CategoryDeposit,
			Method:               req.Method,
			AccountType:          req.AccountType,
			DestinationAccountID: &dest,
			Amount:               req.Amount,
			Currency:             currency,
			Status:               model.StatusPending,
			InitiatedBy:          userID,
			IdempotencyKey:       keyPtr(req.IdempotencyKey),
		}
		if err := e.repo.CreateTransaction(ctx, tx, t, e.attempts); err != nil {
			return err
		}
		meta := &model.TransactionMeta{
			TransactionID: t.ID,
			PaymentProof:  req.ProofReference,
			PaymentProof2: req.ProofReference2,
			Description:   req.Description,
		}
		if err := e.repo.CreateMeta(ctx, tx, meta); err != nil {
			return err
		}
		t.Meta = meta
		return e.seedHistory(ctx, tx, t, "Deposit request received")
	})
	if err != nil {
		return e.afterRace(ctx, err, req.IdempotencyKey, userID, model.CategoryDeposit, req.Amount)
	}
	if replayed {
		return t, nil
	}
	e.log.Infof("deposit %s created: %s %s into account %s (%s)", t.Reference, t.Amount, t.Currency, acct.ID, t.AccountType)
	e.notifyStatus(ctx, t)
	return t, nil
}

// CreateInternalTransfer moves money between two accounts of this bank. Both
// legs happen in one atomic unit, so the transaction is born successful.
func (e *TransferEngine) CreateInternalTransfer(ctx context.Context, userID uuid.UUID, req InternalTransferRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	src, err := e.activeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	ben, err := e.repo.FindAccountByNumber(ctx, e.repo.DB(ctx), req.BeneficiaryAccountNumber)
	if err != nil {
		return nil, err
	}
	if ben.ID == src.ID {
		return nil, apperr.ErrSameAccountTransfer
	}
	destSub, ok := ben.Matches(req.BeneficiaryAccountNumber)
	if !ok {
		destSub = req.AccountType
	}

	var (
		t        *model.Transaction
		replayed bool
		benUser  uuid.UUID
		srcName  string
	)
	err = e.atomic(ctx, func(tx *gorm.DB) error {
		prev, err := e.replay(ctx, tx, req.IdempotencyKey, userID, model.CategoryTransferInternal, req.Amount)
		if err != nil {
			return err
		}
		if prev != nil {
			t, replayed = prev, true
			return nil
		}
		from, to, err := e.ledger.LockPair(ctx, tx, src.ID, ben.ID)
		if err != nil {
			return err
		}
		if !from.IsActive || !to.IsActive {
			return apperr.ErrAccountInactive
		}
		if !from.Balance(req.AccountType).GreaterThan(req.Amount) {
			return fmt.Errorf("%w in %s", apperr.ErrInsufficientFunds, req.AccountType)
		}
		if !ledger.CheckPIN(from, req.PIN) {
			e.log.Warnf("internal transfer from account %s rejected: invalid pin", from.ID)
			return apperr.ErrInvalidPin
		}
		if err := e.ledger.Debit(ctx, tx, from, req.AccountType, req.Amount); err != nil {
			return err
		}
		if _, err := e.ledger.Credit(ctx, tx, to.ID, destSub, req.Amount); err != nil {
			return err
		}
		t = &model.Transaction{
			Category:             model.CategoryTransferInternal,
			Method:               model.MethodInternal,
			AccountType:          req.AccountType,
			SourceAccountID:      &from.ID,
			DestinationAccountID: &to.ID,
			Amount:               req.Amount,
			Currency:             e.currency,
			Status:               model.StatusSuccessful,
			InitiatedBy:          userID,
			IdempotencyKey:       keyPtr(req.IdempotencyKey),
		}
		if err := e.repo.CreateTransaction(ctx, tx, t, e.attempts); err != nil {
			return err
		}
		meta := &model.TransactionMeta{
			TransactionID:            t.ID,
			BeneficiaryName:          to.AccountName,
			BeneficiaryAccountNumber: req.BeneficiaryAccountNumber,
			BeneficiaryBankName:      to.BankName,
			Description:              req.Description,
		}
		if err := e.repo.CreateMeta(ctx, tx, meta); err != nil {
			return err
		}
		t.Meta = meta
		benUser, srcName = to.UserID, from.AccountName
		return e.seedHistory(ctx, tx, t, "Internal transfer completed")
	})
	if err != nil {
		return e.afterRace(ctx, err, req.IdempotencyKey, userID, model.CategoryTransferInternal, req.Amount)
	}
	if replayed {
		return t, nil
	}

	e.log.Infof("internal transfer %s: %s from account %s (%s) to account %s (%s)",
		t.Reference, t.Amount, src.ID, req.AccountType, ben.ID, destSub)
	e.invalidate(ctx, userID, benUser)
	e.notifyStatus(ctx, t)
	title, msg := notify.ReceivedMessage(t.Amount, destSub, srcName)
	e.dispatch(ctx, notify.Notification{
		UserID:  benUser,
		Title:   title,
		Message: msg,
		Type:    notify.TypeTransaction,
		Payload: txPayload(t),
	})
	return t, nil
}

// CreateExternalTransfer debits the caller right away and leaves the
// transaction pending until an approver settles it.
func (e *TransferEngine) CreateExternalTransfer(ctx context.Context, userID uuid.UUID, req ExternalTransferRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(req.Currency, e.currency)
	if err != nil {
		return nil, err
	}
	return e.createPendingDebit(ctx, userID, pendingDebit{
		category: model.CategoryTransferExternal,
		method:   req.Method,
		sub:      req.AccountType,
		amount:   req.Amount,
		currency: currency,
		pin:      req.PIN,
		key:      req.IdempotencyKey,
		note:     "External transfer submitted",
		meta: model.TransactionMeta{
			BeneficiaryName:          req.Beneficiary.Name,
			BeneficiaryAccountNumber: req.Beneficiary.AccountNumber,
			BeneficiaryBankName:      req.Beneficiary.BankName,
			BankSwiftCode:            req.Beneficiary.SwiftCode,
			BankRoutingNumber:        req.Beneficiary.RoutingNumber,
			RecipientAddress:         req.Beneficiary.Address,
			Description:              req.Description,
		},
	})
}

// CreateWithdrawal debits the caller and waits for payout confirmation.
func (e *TransferEngine) CreateWithdrawal(ctx context.Context, userID uuid.UUID, req WithdrawalRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(req.Currency, e.currency)
	if err != nil {
		return nil, err
	}
	return e.createPendingDebit(ctx, userID, pendingDebit{
		category: model.CategoryWithdrawal,
		method:   req.Method,
		sub:      req.AccountType,
		amount:   req.Amount,
		currency: currency,
		pin:      req.PIN,
		key:      req.IdempotencyKey,
		note:     "Withdrawal requested",
		meta:     model.TransactionMeta{Description: req.Description},
	})
}

type pendingDebit struct {
	category model.Category
	method   model.Method
	sub      model.SubAccount
	amount   decimal.Decimal
	currency string
	pin      string
	key      string
	note     string
	meta     model.TransactionMeta
}

func (e *TransferEngine) createPendingDebit(ctx context.Context, userID uuid.UUID, d pendingDebit) (*model.Transaction, error) {
	acct, err := e.activeAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	var (
		t        *model.Transaction
		replayed bool
	)
	err = e.atomic(ctx, func(tx *gorm.DB) error {
		prev, err := e.replay(ctx, tx, d.key, userID, d.category, d.amount)
		if err != nil {
			return err
		}
		if prev != nil {
			t, replayed = prev, true
			return nil
		}
		locked, err := e.ledger.LockForUpdate(ctx, tx, acct.ID)
		if err != nil {
			return err
		}
		if !locked.IsActive {
			return apperr.ErrAccountInactive
		}
		if !locked.Balance(d.sub).GreaterThan(d.amount) {
			return fmt.Errorf("%w in %s", apperr.ErrInsufficientFunds, d.sub)
		}
		if !ledger.CheckPIN(locked, d.pin) {
			e.log.Warnf("%s from account %s rejected: invalid pin", d.category, locked.ID)
			return apperr.ErrInvalidPin
		}
		if err := e.ledger.Debit(ctx, tx, locked, d.sub, d.amount); err != nil {
			return err
		}
		t = &model.Transaction{
			Category:        d.category,
			Method:          d.method,
			AccountType:     d.sub,
			SourceAccountID: &locked.ID,
			Amount:          d.amount,
			Currency:        d.currency,
			Status:          model.StatusPending,
			InitiatedBy:     userID,
			IdempotencyKey:  keyPtr(d.key),
		}
		if err := e.repo.CreateTransaction(ctx, tx, t, e.attempts); err != nil {
			return err
		}
		meta := d.meta
		meta.TransactionID = t.ID
		if err := e.repo.CreateMeta(ctx, tx, &meta); err != nil {
			return err
		}
		t.Meta = &meta
		return e.seedHistory(ctx, tx, t, d.note)
	})
	if err != nil {
		return e.afterRace(ctx, err, d.key, userID, d.category, d.amount)
	}
	if replayed {
		return t, nil
	}
	e.log.Infof("%s %s created: %s debited from account %s (%s)", d.category, t.Reference, t.Amount, acct.ID, d.sub)
	e.invalidate(ctx, userID)
	e.notifyStatus(ctx, t)
	return t, nil
}
