package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/config"
	"github.com/richardliu001/ledger-service/internal/ledger"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/notify"
	"github.com/richardliu001/ledger-service/internal/repo"
	"github.com/richardliu001/ledger-service/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// recorder is a Notifier that keeps what it was asked to send.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail bool
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	if r.fail {
		return errors.New("push gateway down")
	}
	return nil
}

func (r *recorder) titles(user uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.UserID == user {
			out = append(out, n.Title)
		}
	}
	return out
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	repo     *repo.Repository
	engine   *TransferEngine
	accounts *AccountService
	notes    *recorder
}

func newFixture(t *testing.T) *fixture {
	db := testutil.OpenDB(t)
	log := testutil.Logger(t)
	r := repo.NewRepository(db, nil, nil, log)
	l := ledger.New(r, bcrypt.MinCost, log)
	n := &recorder{}
	cfg := config.LedgerConfig{Currency: "USD", ReferenceAttempts: 5}
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		repo:     r,
		engine:   NewTransferEngine(r, l, n, cfg, log),
		accounts: NewAccountService(r, l, n, "Test Bank", log),
		notes:    n,
	}
}

// open creates an account with the given balances (whole units).
func (f *fixture) open(t *testing.T, pin string, checking, savings int64) *model.Account {
	t.Helper()
	a, err := f.accounts.OpenAccount(f.ctx, uuid.New(), "holder", pin)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Account{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"checking_balance": decimal.NewFromInt(checking),
		"savings_balance":  decimal.NewFromInt(savings),
	}).Error)
	return f.reload(t, a.ID)
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.Account {
	t.Helper()
	var a model.Account
	require.NoError(t, f.db.First(&a, "id = ?", id).Error)
	return &a
}

func (f *fixture) txCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Transaction{}).Count(&n).Error)
	return n
}

func (f *fixture) history(t *testing.T, txID uuid.UUID) []model.TransactionHistory {
	t.Helper()
	rows, err := f.repo.ListTransactionHistory(f.ctx, f.db, txID)
	require.NoError(t, err)
	return rows
}

func countFlag(rows []model.TransactionHistory, key string) int {
	n := 0
	for _, h := range rows {
		if h.Metadata.Flag(key) {
			n++
		}
	}
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
