package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/audit"
	"gitlab.ozon.dev/qwestard/storefront/internal/metrics"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

// ConfirmSweeper promotes pending orders whose auto-confirm deadline passed.
// The deadline lives on the order row, so pending confirmations survive a
// process restart; the sweep just has to run again. Promotion is a
// compare-and-swap against pending, making a late or duplicate sweep a no-op
// for orders that were canceled or advanced in the interim.
type ConfirmSweeper struct {
	orders   OrderStore
	notifier EventNotifier
	auditor  Auditor
	mt       *metrics.Metrics

	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewConfirmSweeper(orders OrderStore, notifier EventNotifier, auditor Auditor, mt *metrics.Metrics, interval time.Duration) *ConfirmSweeper {
	return &ConfirmSweeper{
		orders:    orders,
		notifier:  notifier,
		auditor:   auditor,
		mt:        mt,
		interval:  interval,
		batchSize: 100,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConfirmSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so a restart recovery call and tests can
// drive it directly.
func (s *ConfirmSweeper) Sweep(ctx context.Context) {
	due, err := s.orders.DuePendingConfirmations(ctx, s.now(), s.batchSize)
	if err != nil {
		log.Printf("confirm sweep: %v", err)
		return
	}
	for _, o := range due {
		err := s.orders.UpdateStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusConfirmed)
		if err != nil {
			// Lost the race: the order is no longer pending. Leave it alone.
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			log.Printf("confirm order %s: %v", o.ID, err)
			continue
		}

		s.mt.OrdersAutoConfirmed.Inc()
		s.auditor.Log(audit.Record{
			Timestamp: s.now(),
			OrderID:   o.ID,
			UserID:    o.UserID,
			OldStatus: string(models.OrderStatusPending),
			NewStatus: string(models.OrderStatusConfirmed),
			Message:   "order auto-confirmed",
		})
		if _, err := s.notifier.Notify(ctx, o.UserID, "Your order has been confirmed.", models.NotificationOrderConfirmed); err != nil {
			log.Printf("notify user %s: %v", o.UserID, err)
		}
	}
}
