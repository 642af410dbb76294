package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryInterface restricts Repo methods (方便单元测试 mock)
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	SetLockTimeout(ctx context.Context, tx *gorm.DB, d time.Duration) error

	CreateAccount(ctx context.Context, tx *gorm.DB, a *model.Account) error
	GetAccount(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error)
	GetAccountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Account, error)
	FindAccountByNumber(ctx context.Context, tx *gorm.DB, number string) (*model.Account, error)
	AccountNumberTaken(ctx context.Context, tx *gorm.DB, number string) (bool, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, sub model.SubAccount, newBalance decimal.Decimal) error
	IncrementBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, sub model.SubAccount, delta decimal.Decimal) (decimal.Decimal, error)
	UpdateAccountFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction, attempts int) error
	CreateMeta(ctx context.Context, tx *gorm.DB, m *model.TransactionMeta) error
	GetTransactionByReference(ctx context.Context, tx *gorm.DB, ref string) (*model.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, tx *gorm.DB, ref string) (*model.Transaction, error)
	TxExists(ctx context.Context, tx *gorm.DB, idemKey string) (bool, *model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.Status, errMsg string) error

	CreateHistory(ctx context.Context, tx *gorm.DB, h *model.TransactionHistory) error
	ListTransactionHistory(ctx context.Context, tx *gorm.DB, txID uuid.UUID) ([]model.TransactionHistory, error)
	SaveHistory(ctx context.Context, tx *gorm.DB, h *model.TransactionHistory) error
	ListHistoryForUser(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, limit int) ([]model.TransactionHistory, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalances(ctx context.Context, userID uuid.UUID, b model.Balances, gen int64) error
	GetCachedBalances(ctx context.Context, userID uuid.UUID) (model.Balances, int64, error)
	InvalidateBalances(ctx context.Context, userIDs ...uuid.UUID) error
}

// MessageWriter is the part of *kafka.Writer the repository uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer MessageWriter
	ttl    time.Duration
	log    *zap.SugaredLogger
}

type Option func(*Repository)

// WithBalanceTTL sets how long cached balances live.
func WithBalanceTTL(d time.Duration) Option {
	return func(r *Repository) { r.ttl = d }
}

// NewRepository constructs repo. rdb and w may be nil; caching and publishing
// are then disabled.
func NewRepository(db *gorm.DB, rdb *redis.Client, w MessageWriter, logger *zap.SugaredLogger, opts ...Option) *Repository {
	r := &Repository{db: db, rdb: rdb, writer: w, ttl: 5 * time.Minute, log: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// SetLockTimeout bounds row-lock waits for the rest of tx. Postgres only;
// other dialects have no row locks to wait on.
func (r *Repository) SetLockTimeout(ctx context.Context, tx *gorm.DB, d time.Duration) error {
	if d <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.WithContext(ctx).Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", d.Milliseconds())).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// classify turns lock waits that gave up into apperr.ErrBusy and numeric
// overflow of a balance column into apperr.ErrBalanceLimit.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperr.ErrBusy, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "40001": // lock_not_available, deadlock_detected, serialization_failure
			return fmt.Errorf("%w: %s", apperr.ErrBusy, pgErr.Message)
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("%w: %s", apperr.ErrBalanceLimit, pgErr.Message)
		}
	}
	return err
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return classify(err)
}
