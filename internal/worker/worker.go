package worker

import (
	"context"
	"log"
	"time"

	"lostid-service/internal/broker"
	"lostid-service/internal/models"
	"lostid-service/internal/service"
	"lostid-service/internal/util"

	"go.uber.org/zap"
)

// EventLedger records which events have been processed
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// PaymentEventWorker consumes payment events and keeps the status cache warm
// so the client polling loop rarely touches Postgres
type PaymentEventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ledger       EventLedger
	cache        service.StatusCache
	logger       *zap.Logger
}

// NewPaymentEventWorker creates a new payment event worker
func NewPaymentEventWorker(consumer *broker.Consumer, ledger EventLedger, cache service.StatusCache) *PaymentEventWorker {
	w := &PaymentEventWorker{
		consumer: consumer,
		ledger:   ledger,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *PaymentEventWorker) Start(ctx context.Context) error {
	log.Println("Starting payment event worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentEventWorker) Stop() error {
	log.Println("Stopping payment event worker...")
	return w.consumer.Close()
}

func (w *PaymentEventWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	return w.applyStatus(ctx, event.EventID, event.EventType, event.CheckoutRequestID, models.PaymentStatusCompleted)
}

func (w *PaymentEventWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return w.applyStatus(ctx, event.EventID, event.EventType, event.CheckoutRequestID, models.PaymentStatusFailed)
}

func (w *PaymentEventWorker) applyStatus(ctx context.Context, eventID, eventType, checkoutRequestID, status string) error {
	processed, err := w.ledger.IsEventProcessed(ctx, eventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", eventID))
		return nil
	}

	if err := w.cache.SetPaymentStatus(ctx, checkoutRequestID, status); err != nil {
		w.logger.Warn("failed to warm status cache",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Error(err))
	}

	if err := w.ledger.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Error("failed to mark event processed", zap.Error(err))
	}

	return nil
}

// ReconcileWorker periodically sweeps stale pending payments
type ReconcileWorker struct {
	reconciler *service.Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler *service.Reconciler, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		logger:     util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Printf("Starting reconcile worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconcile worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			if err := w.reconciler.Sweep(ctx); err != nil {
				w.logger.Error("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}
