package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reserved history metadata keys.
const (
	// MetaCreditPosted marks the single history row recording that a deposit
	// was credited. Its presence is the only guard against double credit.
	MetaCreditPosted = "credit_posted"
	// MetaRefundPosted does the same for the reversal of a debited transfer.
	MetaRefundPosted = "refund_posted"
	MetaStatusFrom   = "status_from"
	MetaStatusTo     = "status_to"
)

// Metadata is the free-form key/value payload of a history row.
type Metadata map[string]any

// Flag reports whether key holds boolean true.
func (m Metadata) Flag(key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

// Merge copies patch over m and returns the result; m may be nil.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

type TransactionHistory struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID    `gorm:"type:uuid;index;not null" json:"transaction_id"`
	Transaction   *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
	Metadata      Metadata     `gorm:"type:jsonb;serializer:json" json:"metadata"`
	Note          string       `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TransactionHistory) TableName() string { return "transaction_history" }

func (h *TransactionHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Metadata == nil {
		h.Metadata = Metadata{}
	}
	return nil
}

// AppendNote joins note onto the existing one with a bullet separator.
func (h *TransactionHistory) AppendNote(note string) {
	joined := strings.TrimSpace(h.Note) + " • " + note
	h.Note = strings.Trim(joined, " •")
}
