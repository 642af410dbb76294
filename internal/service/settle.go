package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/notify"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConfirmDeposit settles a deposit as successful and posts its credit. It is
// safe to call any number of times; a repeat only retries a credit that has
// not been posted yet.
func (e *TransferEngine) ConfirmDeposit(ctx context.Context, ref string) error {
	t, changed, err := e.settle(ctx, ref, model.StatusSuccessful, "Deposit confirmed", func(t *model.Transaction) error {
		if t.Category != model.CategoryDeposit {
			return fmt.Errorf("%w: %s is a %s", apperr.ErrInvalidTransition, ref, t.Category)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		e.log.Infof("deposit %s confirmed", ref)
	}
	return e.postCredit(ctx, t)
}

// SetStatus is the approval path for any category. Re-applying the current
// status changes nothing but still retries pending side effects.
func (e *TransferEngine) SetStatus(ctx context.Context, ref string, status model.Status, note string) (*model.Transaction, error) {
	if !status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	t, changed, err := e.settle(ctx, ref, status, note, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		e.log.Infof("transaction %s moved to %s", ref, status)
		// a settled deposit is announced by its credit, with the new balance
		if t.Category != model.CategoryDeposit || t.Status != model.StatusSuccessful {
			e.notifyStatus(ctx, t)
		}
	}
	switch t.Category {
	case model.CategoryDeposit:
		err = e.postCredit(ctx, t)
	case model.CategoryTransferExternal, model.CategoryWithdrawal:
		err = e.postRefund(ctx, t)
	}
	return t, err
}

// settle locks the transaction row and moves it to status. check runs on the
// locked row before anything is written.
func (e *TransferEngine) settle(ctx context.Context, ref string, status model.Status, note string, check func(*model.Transaction) error) (*model.Transaction, bool, error) {
	var (
		t       *model.Transaction
		changed bool
	)
	err := e.atomic(ctx, func(tx *gorm.DB) error {
		locked, err := e.repo.GetTransactionForUpdate(ctx, tx, ref)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(locked); err != nil {
				return err
			}
		}
		t = locked
		if locked.Status == status {
			return nil
		}
		if !locked.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, locked.Status, status)
		}
		var errMsg string
		if status == model.StatusFailed || status == model.StatusCancelled {
			errMsg = note
		}
		if err := e.repo.UpdateTransactionStatus(ctx, tx, locked.ID, status, errMsg); err != nil {
			return err
		}
		h := &model.TransactionHistory{
			TransactionID: locked.ID,
			Metadata: model.Metadata{
				model.MetaStatusFrom: string(locked.Status),
				model.MetaStatusTo:   string(status),
			},
			Note: note,
		}
		if err := e.repo.CreateHistory(ctx, tx, h); err != nil {
			return err
		}
		locked.Status = status
		if errMsg != "" {
			locked.ErrorMessage = errMsg
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return t, changed, nil
}

// sideEffect is a balance credit recorded by a reserved history marker.
type sideEffect struct {
	marker    string
	accountID uuid.UUID
	sub       model.SubAccount
	note      string
}

// postCredit posts a successful deposit into the destination account.
// Unmet preconditions are no-ops.
func (e *TransferEngine) postCredit(ctx context.Context, t *model.Transaction) error {
	if t.Category != model.CategoryDeposit || t.Status != model.StatusSuccessful ||
		t.DestinationAccountID == nil || !t.AccountType.Valid() || !t.Amount.IsPositive() {
		return nil
	}
	se := sideEffect{
		marker:    model.MetaCreditPosted,
		accountID: *t.DestinationAccountID,
		sub:       t.AccountType,
		note:      fmt.Sprintf("Credited %s to %s", t.Amount.StringFixed(2), t.AccountType.Label()),
	}
	applied, owner, bal, err := e.applyOnce(ctx, t, se)
	if err != nil {
		e.log.Errorf("credit deposit %s: %v", t.Reference, err)
		return fmt.Errorf("post credit %s: %w", t.Reference, err)
	}
	if !applied {
		return nil
	}
	e.log.Infof("deposit %s credited %s to account %s (%s)", t.Reference, t.Amount, se.accountID, se.sub)
	e.invalidate(ctx, owner)
	title, msg := notify.CreditMessage(t.Amount, t.AccountType, bal)
	e.dispatch(ctx, balanceNotification(owner, title, msg, t, bal))
	return nil
}

// postRefund returns the debited amount of a failed or cancelled external
// transfer or withdrawal to its source sub-account.
func (e *TransferEngine) postRefund(ctx context.Context, t *model.Transaction) error {
	if (t.Category != model.CategoryTransferExternal && t.Category != model.CategoryWithdrawal) ||
		(t.Status != model.StatusFailed && t.Status != model.StatusCancelled) ||
		t.SourceAccountID == nil || !t.AccountType.Valid() || !t.Amount.IsPositive() {
		return nil
	}
	se := sideEffect{
		marker:    model.MetaRefundPosted,
		accountID: *t.SourceAccountID,
		sub:       t.AccountType,
		note:      fmt.Sprintf("Refunded %s to %s", t.Amount.StringFixed(2), t.AccountType.Label()),
	}
	applied, owner, bal, err := e.applyOnce(ctx, t, se)
	if err != nil {
		e.log.Errorf("refund %s: %v", t.Reference, err)
		return fmt.Errorf("post refund %s: %w", t.Reference, err)
	}
	if !applied {
		return nil
	}
	e.log.Infof("%s %s refunded %s to account %s (%s)", t.Category, t.Reference, t.Amount, se.accountID, se.sub)
	e.invalidate(ctx, owner)
	title, msg := notify.RefundMessage(t.Amount, t.AccountType, bal)
	e.dispatch(ctx, balanceNotification(owner, title, msg, t, bal))
	return nil
}

// applyOnce credits se.accountID with t.Amount unless se.marker is already
// on one of t's history rows. The marker check is repeated under the account
// lock, which serializes concurrent callers.
func (e *TransferEngine) applyOnce(ctx context.Context, t *model.Transaction, se sideEffect) (bool, uuid.UUID, decimal.Decimal, error) {
	posted, err := e.markerPosted(ctx, e.repo.DB(ctx), t.ID, se.marker)
	if err != nil || posted {
		return false, uuid.Nil, decimal.Zero, err
	}
	var (
		applied bool
		owner   uuid.UUID
		bal     decimal.Decimal
	)
	err = e.atomic(ctx, func(tx *gorm.DB) error {
		a, err := e.ledger.LockForUpdate(ctx, tx, se.accountID)
		if err != nil {
			return err
		}
		posted, err := e.markerPosted(ctx, tx, t.ID, se.marker)
		if err != nil || posted {
			return err
		}
		bal, err = e.ledger.Credit(ctx, tx, a.ID, se.sub, t.Amount)
		if err != nil {
			return err
		}
		if err := e.recordMarker(ctx, tx, t, se); err != nil {
			return err
		}
		applied, owner = true, a.UserID
		return nil
	})
	if err != nil {
		return false, uuid.Nil, decimal.Zero, err
	}
	return applied, owner, bal, nil
}

func (e *TransferEngine) markerPosted(ctx context.Context, tx *gorm.DB, txID uuid.UUID, marker string) (bool, error) {
	rows, err := e.repo.ListTransactionHistory(ctx, tx, txID)
	if err != nil {
		return false, err
	}
	for _, h := range rows {
		if h.Metadata.Flag(marker) {
			return true, nil
		}
	}
	return false, nil
}

// recordMarker merges the marker into the earliest history row, creating a
// row only when the transaction has none.
func (e *TransferEngine) recordMarker(ctx context.Context, tx *gorm.DB, t *model.Transaction, se sideEffect) error {
	patch := model.Metadata{
		se.marker:       true,
		"posted_amount": t.Amount.StringFixed(2),
		"posted_to":     string(se.sub),
	}
	rows, err := e.repo.ListTransactionHistory(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return e.repo.CreateHistory(ctx, tx, &model.TransactionHistory{
			TransactionID: t.ID,
			Metadata:      patch,
			Note:          se.note,
		})
	}
	first := rows[0]
	first.Metadata = first.Metadata.Merge(patch)
	first.AppendNote(se.note)
	return e.repo.SaveHistory(ctx, tx, &first)
}

func balanceNotification(userID uuid.UUID, title, msg string, t *model.Transaction, bal decimal.Decimal) notify.Notification {
	payload := txPayload(t)
	payload["balance"] = bal.StringFixed(2)
	payload["account_type"] = string(t.AccountType)
	return notify.Notification{
		UserID:  userID,
		Title:   title,
		Message: msg,
		Type:    notify.TypeTransaction,
		Payload: payload,
	}
}
