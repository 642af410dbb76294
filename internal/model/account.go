package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultBankName = "Cortanae Capital Bank"

// Account holds both ledgers of a single user. Balances are only mutated
// through the ledger package while the row is locked.
type Account struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	AccountName       string          `gorm:"size:255" json:"account_name"`
	CheckingAccNumber string          `gorm:"size:25;uniqueIndex;not null" json:"checking_acc_number"`
	SavingsAccNumber  string          `gorm:"size:25;uniqueIndex;not null" json:"savings_acc_number"`
	CheckingBalance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"checking_balance"`
	SavingsBalance    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"savings_balance"`
	BankName          string          `gorm:"size:255;not null" json:"bank_name"`
	PinHash           string          `gorm:"size:255;not null" json:"-"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	Version           uint64          `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.BankName == "" {
		a.BankName = DefaultBankName
	}
	return nil
}

// Balance returns the balance of sub.
func (a *Account) Balance(sub SubAccount) decimal.Decimal {
	f, ok := subAccounts[sub]
	if !ok {
		return decimal.Zero
	}
	return *f.balance(a)
}

// SetBalance overwrites the in-memory balance of sub.
func (a *Account) SetBalance(sub SubAccount, v decimal.Decimal) {
	if f, ok := subAccounts[sub]; ok {
		*f.balance(a) = v
	}
}

// Matches reports which sub-account number equals number.
func (a *Account) Matches(number string) (SubAccount, bool) {
	switch number {
	case a.CheckingAccNumber:
		return SubAccountChecking, true
	case a.SavingsAccNumber:
		return SubAccountSavings, true
	}
	return "", false
}

// Balances is the pair returned to clients.
type Balances struct {
	Checking decimal.Decimal `json:"checking_balance"`
	Savings  decimal.Decimal `json:"savings_balance"`
}

func (a *Account) Balances() Balances {
	return Balances{Checking: a.CheckingBalance, Savings: a.SavingsBalance}
}
