package apperr

import "errors"

// Kind classifies an error for callers deciding whether to surface or retry it.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "infrastructure"
	}
}

// Error is a typed business error. Sentinels below are compared by identity,
// so wrap them with %w to add context.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Msg: msg}
}

var (
	ErrInvalidAmount             = newErr(KindValidation, "invalid_amount", "amount must be a positive number of whole cents up to 999999999999.99")
	ErrInvalidPinFormat          = newErr(KindValidation, "invalid_pin_format", "account pin must be digits only")
	ErrInvalidAccountType        = newErr(KindValidation, "invalid_account_type", "account type must be savings or checking")
	ErrCategoryMethodMismatch    = newErr(KindValidation, "category_method_mismatch", "method is not allowed for this category")
	ErrMissingBeneficiaryDetails = newErr(KindValidation, "missing_beneficiary_details", "beneficiary details are incomplete")
	ErrInvalidCurrency           = newErr(KindValidation, "invalid_currency", "currency must be a 3 letter code")
	ErrInvalidAccountNumber      = newErr(KindValidation, "invalid_account_number", "account number must be 8-20 digits")
	ErrMissingProof              = newErr(KindValidation, "missing_proof", "payment proof is required")
	ErrInvalidStatus             = newErr(KindValidation, "invalid_status", "unknown transaction status")

	ErrInvalidPin = newErr(KindAuthorization, "invalid_pin", "invalid account pin")

	ErrAccountNotFound     = newErr(KindNotFound, "account_not_found", "account not found")
	ErrTransactionNotFound = newErr(KindNotFound, "transaction_not_found", "transaction not found")

	ErrSameAccountTransfer = newErr(KindConflict, "same_account_transfer", "cannot transfer to your own account")
	ErrInsufficientFunds   = newErr(KindConflict, "insufficient_funds", "insufficient funds")
	ErrDuplicateReference  = newErr(KindConflict, "duplicate_reference", "could not allocate a unique reference")
	ErrInvalidTransition   = newErr(KindConflict, "invalid_transition", "transaction status cannot change")
	ErrIdempotencyConflict = newErr(KindConflict, "idempotency_conflict", "idempotency key reused with a different request")
	ErrAccountInactive     = newErr(KindConflict, "account_inactive", "account is inactive")
	ErrAccountExists       = newErr(KindConflict, "account_exists", "user already has an account")
	ErrSamePin             = newErr(KindConflict, "same_pin", "new pin must differ from the current pin")
	ErrBalanceLimit        = newErr(KindConflict, "balance_limit", "balance would exceed the account limit")

	ErrBusy = newErr(KindInfrastructure, "busy", "account is busy, retry later")
)

// KindOf reports the kind of err. Unknown errors are infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// CodeOf returns the stable code of err, or "internal" for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
