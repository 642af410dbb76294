package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/reference"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// swapped in tests to force collisions
var newReference = reference.New

type Transaction struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Reference            string           `gorm:"size:32;uniqueIndex;not null" json:"reference"`
	Category             Category         `gorm:"size:32;not null;index" json:"category"`
	Method               Method           `gorm:"size:16;not null" json:"method"`
	AccountType          SubAccount       `gorm:"size:16" json:"account_type,omitempty"`
	SourceAccountID      *uuid.UUID       `gorm:"type:uuid;index" json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID       `gorm:"type:uuid;index" json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency             string           `gorm:"size:3;not null" json:"currency"`
	Fee                  decimal.Decimal  `gorm:"type:numeric(20,2);not null;default:0" json:"fee"`
	Status               Status           `gorm:"size:16;not null;index" json:"status"`
	ErrorMessage         string           `gorm:"type:text" json:"error_message,omitempty"`
	InitiatedBy          uuid.UUID        `gorm:"type:uuid;not null;index" json:"initiated_by"`
	IdempotencyKey       *string          `gorm:"size:64;uniqueIndex" json:"idempotency_key,omitempty"`
	Meta                 *TransactionMeta `gorm:"foreignKey:TransactionID" json:"meta,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// BeforeCreate assigns the id and, once, the reference. A short reference that
// already exists is replaced by the longer uuid-derived one.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Reference != "" {
		return nil
	}
	ref := newReference()
	var n int64
	err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&Transaction{}).Where("reference = ?", ref).Count(&n).Error
	if err != nil {
		return fmt.Errorf("check reference: %w", err)
	}
	if n > 0 {
		ref = reference.Fallback()
	}
	t.Reference = ref
	return nil
}

// Validate checks the participant and method invariants for the category.
func (t *Transaction) Validate() error {
	if !ValidAmount(t.Amount) {
		return fmt.Errorf("transaction %s: amount %s is not a positive whole-cent amount", t.Reference, t.Amount)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("transaction %s: unknown category %q", t.Reference, t.Category)
	}
	if !t.Category.Allows(t.Method) {
		return fmt.Errorf("transaction %s: method %q not allowed for %q", t.Reference, t.Method, t.Category)
	}
	if t.Category.Debits() && t.SourceAccountID == nil {
		return fmt.Errorf("transaction %s: %s needs a source", t.Reference, t.Category)
	}
	switch t.Category {
	case CategoryDeposit:
		if t.DestinationAccountID == nil {
			return fmt.Errorf("transaction %s: deposit needs a destination", t.Reference)
		}
	case CategoryTransferInternal:
		if t.DestinationAccountID == nil {
			return fmt.Errorf("transaction %s: internal transfer needs both accounts", t.Reference)
		}
		if *t.SourceAccountID == *t.DestinationAccountID {
			return fmt.Errorf("transaction %s: source equals destination", t.Reference)
		}
	}
	return nil
}

// InvolvesAccount reports whether id is the source or destination.
func (t *Transaction) InvolvesAccount(id uuid.UUID) bool {
	return (t.SourceAccountID != nil && *t.SourceAccountID == id) ||
		(t.DestinationAccountID != nil && *t.DestinationAccountID == id)
}

// TransactionMeta carries category specific descriptive fields.
type TransactionMeta struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	TransactionID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	BeneficiaryName          string    `gorm:"size:255" json:"beneficiary_name,omitempty"`
	BeneficiaryAccountNumber string    `gorm:"size:32" json:"beneficiary_account_number,omitempty"`
	BeneficiaryBankName      string    `gorm:"size:255" json:"beneficiary_bank_name,omitempty"`
	BankSwiftCode            string    `gorm:"size:32" json:"bank_swift_code,omitempty"`
	BankRoutingNumber        string    `gorm:"size:32" json:"bank_routing_number,omitempty"`
	RecipientAddress         string    `gorm:"size:255" json:"recipient_address,omitempty"`
	Description              string    `gorm:"type:text" json:"description,omitempty"`
	PaymentProof             string    `gorm:"size:255" json:"payment_proof,omitempty"`
	PaymentProof2            string    `gorm:"size:255" json:"payment_proof_2,omitempty"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (TransactionMeta) TableName() string { return "transaction_meta" }

func (m *TransactionMeta) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
