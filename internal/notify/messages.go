package notify

import (
	"fmt"
	"strings"

	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/shopspring/decimal"
)

type template struct {
	title   string
	message string
}

var templates = map[model.Category]map[model.Status]template{
	model.CategoryDeposit: {
		model.StatusPending:    {"Deposit Pending", "Your deposit of {amount} is being processed."},
		model.StatusSuccessful: {"Deposit Successful", "Your deposit of {amount} has been completed successfully."},
		model.StatusFailed:     {"Deposit Failed", "Your deposit of {amount} could not be completed. Please try again."},
		model.StatusCancelled:  {"Deposit Cancelled", "Your deposit of {amount} was cancelled."},
	},
	model.CategoryWithdrawal: {
		model.StatusPending:    {"Withdrawal Pending", "Your withdrawal of {amount} is awaiting confirmation."},
		model.StatusSuccessful: {"Withdrawal Successful", "Your withdrawal of {amount} was processed successfully."},
		model.StatusFailed:     {"Withdrawal Failed", "Your withdrawal of {amount} could not be completed."},
		model.StatusCancelled:  {"Withdrawal Cancelled", "Your withdrawal of {amount} was cancelled."},
	},
	model.CategoryTransferExternal: {
		model.StatusPending:    {"Transfer Pending", "Your transfer of {amount} is being processed."},
		model.StatusSuccessful: {"Transfer Successful", "Your transfer of {amount} has been completed."},
		model.StatusFailed:     {"Transfer Failed", "Your transfer of {amount} could not be completed."},
		model.StatusCancelled:  {"Transfer Cancelled", "Your transfer of {amount} was cancelled."},
	},
	model.CategoryTransferInternal: {
		model.StatusPending:    {"Payment Processing", "Your payment of {amount} is being processed."},
		model.StatusSuccessful: {"Payment Successful", "Your payment of {amount} was successful."},
		model.StatusFailed:     {"Payment Failed", "Your payment of {amount} failed."},
	},
}

var unknown = template{"Unknown Transaction", "Your transaction of {amount} has an unknown status."}

// Message renders the title and body for a transaction state.
func Message(c model.Category, s model.Status, amount decimal.Decimal) (title, message string) {
	tpl, ok := templates[c][s]
	if !ok {
		tpl = unknown
	}
	return tpl.title, strings.ReplaceAll(tpl.message, "{amount}", amount.StringFixed(2))
}

// CreditMessage announces a posted deposit credit.
func CreditMessage(amount decimal.Decimal, sub model.SubAccount, balance decimal.Decimal) (title, message string) {
	return "Deposit Successful", fmt.Sprintf("%s has been credited into your %s account. New balance: %s",
		amount.StringFixed(2), sub.Label(), balance.StringFixed(2))
}

// RefundMessage announces funds returned after a failed or cancelled debit.
func RefundMessage(amount decimal.Decimal, sub model.SubAccount, balance decimal.Decimal) (title, message string) {
	return "Funds Returned", fmt.Sprintf("%s has been returned to your %s account. New balance: %s",
		amount.StringFixed(2), sub.Label(), balance.StringFixed(2))
}

// ReceivedMessage tells a beneficiary about an incoming internal transfer.
func ReceivedMessage(amount decimal.Decimal, sub model.SubAccount, from string) (title, message string) {
	return "Funds Received", fmt.Sprintf("You received %s into your %s account from %s.",
		amount.StringFixed(2), sub.Label(), from)
}
