package model

import "time"

// OutboxEvent is a notification waiting to be relayed to Kafka.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID string    `gorm:"size:64;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// All lists the tables managed by AutoMigrate.
func All() []any {
	return []any{&Account{}, &Transaction{}, &TransactionMeta{}, &TransactionHistory{}, &OutboxEvent{}}
}
