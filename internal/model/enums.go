package model

import "github.com/shopspring/decimal"

// SubAccount selects one of the two ledgers held by an Account.
type SubAccount string

const (
	SubAccountChecking SubAccount = "checking"
	SubAccountSavings  SubAccount = "savings"
)

type subAccountField struct {
	column  string
	label   string
	balance func(*Account) *decimal.Decimal
}

var subAccounts = map[SubAccount]subAccountField{
	SubAccountChecking: {
		column:  "checking_balance",
		label:   "CHECKING",
		balance: func(a *Account) *decimal.Decimal { return &a.CheckingBalance },
	},
	SubAccountSavings: {
		column:  "savings_balance",
		label:   "SAVINGS",
		balance: func(a *Account) *decimal.Decimal { return &a.SavingsBalance },
	},
}

func (s SubAccount) Valid() bool {
	_, ok := subAccounts[s]
	return ok
}

// Column is the balance column backing s. Empty for unknown values.
func (s SubAccount) Column() string { return subAccounts[s].column }

func (s SubAccount) Label() string { return subAccounts[s].label }

type Category string

const (
	CategoryDeposit          Category = "deposit"
	CategoryTransferInternal Category = "transfer_internal"
	CategoryTransferExternal Category = "transfer_external"
	CategoryWithdrawal       Category = "withdrawal"
)

type Method string

const (
	MethodWire     Method = "wire"
	MethodBank     Method = "bank"
	MethodInternal Method = "internal"
)

var categoryMethods = map[Category][]Method{
	CategoryDeposit:          {MethodWire, MethodBank},
	CategoryTransferInternal: {MethodInternal},
	CategoryTransferExternal: {MethodWire, MethodBank},
	CategoryWithdrawal:       {MethodWire, MethodBank},
}

func (c Category) Valid() bool {
	_, ok := categoryMethods[c]
	return ok
}

// Allows reports whether m may be used with c.
func (c Category) Allows(m Method) bool {
	for _, allowed := range categoryMethods[c] {
		if allowed == m {
			return true
		}
	}
	return false
}

// Debits reports whether creating a transaction of this category takes money
// out of the source account.
func (c Category) Debits() bool {
	return c == CategoryTransferInternal || c == CategoryTransferExternal || c == CategoryWithdrawal
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccessful, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusCancelled || s == StatusFailed
}

// CanTransition allows pending -> any terminal state only.
func (s Status) CanTransition(to Status) bool {
	return s == StatusPending && to.Terminal()
}
