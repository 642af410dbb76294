// Package outbox relays committed outbox rows to Kafka.
package outbox

import (
	"context"
	"time"

	"github.com/richardliu001/ledger-service/internal/model"
	"go.uber.org/zap"
)

// Store is the part of the repository the relay needs.
type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

type Relay struct {
	store    Store
	batch    int
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewRelay(s Store, batch int, interval time.Duration, logger *zap.SugaredLogger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{store: s, batch: batch, interval: interval, log: logger}
}

// RelayOnce publishes one batch in creation order and returns how many
// events were sent. It stops at the first publish failure so later events
// never overtake an earlier one; the failed event is retried next round.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.store.PublishEvent(ctx, evt); err != nil {
			r.log.Errorf("publish id=%d: %v", evt.ID, err)
			return sent, err
		}
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			// delivered at least once; consumers dedupe on the payload
			r.log.Errorf("mark processed id=%d: %v", evt.ID, err)
			return sent, err
		}
		sent++
		r.log.Debugf("event %d sent", evt.ID)
	}
	return sent, nil
}

// Run polls every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.RelayOnce(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.Warnf("relay round: %v", err)
			}
			if n > 0 {
				r.log.Infof("relayed %d events", n)
			}
		}
	}
}
