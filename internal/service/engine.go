package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/config"
	"github.com/richardliu001/ledger-service/internal/ledger"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/notify"
	"github.com/richardliu001/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TransferEngine glues validation, locking and money movement. Every create
// or settle call runs in one atomic unit; notifications and cache
// invalidation run after commit.
type TransferEngine struct {
	repo     repo.RepositoryInterface
	ledger   *ledger.Ledger
	notifier notify.Notifier
	currency string
	timeout  time.Duration
	attempts int
	log      *zap.SugaredLogger
}

// NewTransferEngine returns TransferEngine. n may be nil.
func NewTransferEngine(r repo.RepositoryInterface, l *ledger.Ledger, n notify.Notifier, cfg config.LedgerConfig, logger *zap.SugaredLogger) *TransferEngine {
	e := &TransferEngine{
		repo:     r,
		ledger:   l,
		notifier: n,
		currency: strings.ToUpper(cfg.Currency),
		timeout:  cfg.LockTimeout,
		attempts: cfg.ReferenceAttempts,
		log:      logger,
	}
	if e.currency == "" {
		e.currency = "USD"
	}
	if e.attempts < 1 {
		e.attempts = 5
	}
	return e
}

// atomic runs fn in one database transaction with a bounded lock wait.
func (e *TransferEngine) atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return e.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.repo.SetLockTimeout(ctx, tx, e.timeout); err != nil {
			return err
		}
		return fn(tx)
	})
}

// replay resolves an idempotency key. A hit by the same initiator for the
// same request returns the stored transaction; anything else conflicts.
func (e *TransferEngine) replay(ctx context.Context, tx *gorm.DB, key string, userID uuid.UUID, c model.Category, amount decimal.Decimal) (*model.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	found, t, err := e.repo.TxExists(ctx, tx, key)
	if err != nil || !found {
		return nil, err
	}
	if t.InitiatedBy != userID || t.Category != c || !t.Amount.Equal(amount) {
		return nil, apperr.ErrIdempotencyConflict
	}
	return t, nil
}

// afterRace handles a failed unit that raced another request carrying the
// same idempotency key: the winner's transaction is returned instead.
func (e *TransferEngine) afterRace(ctx context.Context, err error, key string, userID uuid.UUID, c model.Category, amount decimal.Decimal) (*model.Transaction, error) {
	var typed *apperr.Error
	if key == "" || errors.As(err, &typed) {
		return nil, err
	}
	t, rerr := e.replay(ctx, e.repo.DB(ctx), key, userID, c, amount)
	if rerr != nil {
		return nil, rerr
	}
	if t == nil {
		return nil, err
	}
	return t, nil
}

func (e *TransferEngine) seedHistory(ctx context.Context, tx *gorm.DB, t *model.Transaction, note string) error {
	return e.repo.CreateHistory(ctx, tx, &model.TransactionHistory{
		TransactionID: t.ID,
		Metadata: model.Metadata{
			"event":    "created",
			"status":   string(t.Status),
			"category": string(t.Category),
		},
		Note: note,
	})
}

func (e *TransferEngine) dispatch(ctx context.Context, n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warnf("notify user %s %q: %v", n.UserID, n.Title, err)
	}
}

// notifyStatus sends the per category/status message to the initiator.
func (e *TransferEngine) notifyStatus(ctx context.Context, t *model.Transaction) {
	title, msg := notify.Message(t.Category, t.Status, t.Amount)
	e.dispatch(ctx, notify.Notification{
		UserID:  t.InitiatedBy,
		Title:   title,
		Message: msg,
		Type:    notify.TypeTransaction,
		Payload: txPayload(t),
	})
}

func (e *TransferEngine) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if err := e.repo.InvalidateBalances(ctx, userIDs...); err != nil {
		e.log.Warnf("invalidate balances: %v", err)
	}
}

func txPayload(t *model.Transaction) map[string]any {
	return map[string]any{
		"reference": t.Reference,
		"category":  string(t.Category),
		"status":    string(t.Status),
		"amount":    t.Amount.StringFixed(2),
		"currency":  t.Currency,
	}
}

// activeAccount loads the caller's account. The read is advisory; callers
// lock before any balance decision.
func (e *TransferEngine) activeAccount(ctx context.Context, userID uuid.UUID) (*model.Account, error) {
	a, err := e.repo.GetAccountByUser(ctx, e.repo.DB(ctx), userID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, apperr.ErrAccountInactive
	}
	return a, nil
}

// GetTransaction returns the transaction if userID initiated it or owns its
// source or destination. Anything else reads as not found.
func (e *TransferEngine) GetTransaction(ctx context.Context, ref string, userID uuid.UUID) (*model.Transaction, error) {
	t, err := e.repo.GetTransactionByReference(ctx, e.repo.DB(ctx), ref)
	if err != nil {
		return nil, err
	}
	if t.InitiatedBy == userID {
		return t, nil
	}
	a, err := e.repo.GetAccountByUser(ctx, e.repo.DB(ctx), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrAccountNotFound) {
			return nil, apperr.ErrTransactionNotFound
		}
		return nil, err
	}
	if !t.InvolvesAccount(a.ID) {
		return nil, apperr.ErrTransactionNotFound
	}
	return t, nil
}

// ListHistory returns history rows of transactions visible to userID,
// newest first.
func (e *TransferEngine) ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]model.TransactionHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var accountID *uuid.UUID
	a, err := e.repo.GetAccountByUser(ctx, e.repo.DB(ctx), userID)
	switch {
	case err == nil:
		accountID = &a.ID
	case !errors.Is(err, apperr.ErrAccountNotFound):
		return nil, err
	}
	return e.repo.ListHistoryForUser(ctx, userID, accountID, limit)
}
