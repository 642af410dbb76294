package service

import (
	"strings"

	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/shopspring/decimal"
)

type DepositRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Method         model.Method
	AccountType    model.SubAccount
	ProofReference string
	// optional second proof document
	ProofReference2 string
	Description     string
	IdempotencyKey  string
}

type InternalTransferRequest struct {
	Amount                   decimal.Decimal
	AccountType              model.SubAccount
	BeneficiaryAccountNumber string
	PIN                      string
	Description              string
	IdempotencyKey           string
}

// Beneficiary describes the receiving party of an external transfer.
type Beneficiary struct {
	Name          string
	AccountNumber string
	BankName      string
	SwiftCode     string
	RoutingNumber string
	Address       string
}

type ExternalTransferRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Method         model.Method
	AccountType    model.SubAccount
	Beneficiary    Beneficiary
	PIN            string
	Description    string
	IdempotencyKey string
}

type WithdrawalRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Method         model.Method
	AccountType    model.SubAccount
	PIN            string
	Description    string
	IdempotencyKey string
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validatePINFormat(pin string) error {
	if !isDigits(pin) {
		return apperr.ErrInvalidPinFormat
	}
	return nil
}

func validateAccountNumber(n string) error {
	if !isDigits(n) || len(n) < 8 || len(n) > 20 {
		return apperr.ErrInvalidAccountNumber
	}
	return nil
}

// normalizeCurrency upper-cases c, falling back to def when empty.
func normalizeCurrency(c, def string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		c = def
	}
	if len(c) != 3 {
		return "", apperr.ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", apperr.ErrInvalidCurrency
		}
	}
	return c, nil
}

// validateMovement runs the checks shared by every create operation.
func validateMovement(amount decimal.Decimal, c model.Category, m model.Method, sub model.SubAccount) error {
	if !model.ValidAmount(amount) {
		return apperr.ErrInvalidAmount
	}
	if !c.Allows(m) {
		return apperr.ErrCategoryMethodMismatch
	}
	if !sub.Valid() {
		return apperr.ErrInvalidAccountType
	}
	return nil
}

func (r DepositRequest) validate() error {
	if err := validateMovement(r.Amount, model.CategoryDeposit, r.Method, r.AccountType); err != nil {
		return err
	}
	if strings.TrimSpace(r.ProofReference) == "" {
		return apperr.ErrMissingProof
	}
	return nil
}

func (r InternalTransferRequest) validate() error {
	if err := validateMovement(r.Amount, model.CategoryTransferInternal, model.MethodInternal, r.AccountType); err != nil {
		return err
	}
	if err := validatePINFormat(r.PIN); err != nil {
		return err
	}
	return validateAccountNumber(r.BeneficiaryAccountNumber)
}

func (r ExternalTransferRequest) validate() error {
	if err := validateMovement(r.Amount, model.CategoryTransferExternal, r.Method, r.AccountType); err != nil {
		return err
	}
	if err := validatePINFormat(r.PIN); err != nil {
		return err
	}
	if strings.TrimSpace(r.Beneficiary.Name) == "" {
		return apperr.ErrMissingBeneficiaryDetails
	}
	if (r.Method == model.MethodBank || r.Method == model.MethodWire) && strings.TrimSpace(r.Beneficiary.BankName) == "" {
		return apperr.ErrMissingBeneficiaryDetails
	}
	return nil
}

func (r WithdrawalRequest) validate() error {
	if err := validateMovement(r.Amount, model.CategoryWithdrawal, r.Method, r.AccountType); err != nil {
		return err
	}
	return validatePINFormat(r.PIN)
}
