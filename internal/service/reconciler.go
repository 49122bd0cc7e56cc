package service

import (
	"context"
	"time"

	"lostid-service/internal/models"
	"lostid-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconcileBatchSize = 100

// Reconciler resolves pending payments whose provider callback never arrived
// by querying the provider directly. Applies the same conditional transitions
// as the callback path, so a late callback racing a sweep cannot double-apply.
type Reconciler struct {
	store     PaymentStore
	gateway   PaymentGateway
	cache     StatusCache
	publisher PaymentEventPublisher
	threshold time.Duration
	logger    *zap.Logger
}

// NewReconciler creates a new payment reconciler
func NewReconciler(store PaymentStore, gw PaymentGateway, cache StatusCache, publisher PaymentEventPublisher, threshold time.Duration) *Reconciler {
	return &Reconciler{
		store:     store,
		gateway:   gw,
		cache:     cache,
		publisher: publisher,
		threshold: threshold,
		logger:    util.GetLogger(),
	}
}

// Sweep queries the provider for every pending payment older than the
// configured threshold and applies the outcome.
func (r *Reconciler) Sweep(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.Sweep")
	defer span.End()

	util.ReconcileSweepsTotal.Inc()

	cutoff := time.Now().Add(-r.threshold)
	payments, err := r.store.ListStalePendingPayments(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		return err
	}

	if len(payments) == 0 {
		return nil
	}

	r.logger.Info("Reconciling stale pending payments", zap.Int("count", len(payments)))

	for i := range payments {
		if err := r.reconcileOne(ctx, &payments[i]); err != nil {
			r.logger.Warn("failed to reconcile payment",
				zap.String("checkout_request_id", payments[i].CheckoutRequestID),
				zap.Error(err))
		}
	}

	return nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, payment *models.Payment) error {
	result, err := r.gateway.QuerySTKStatus(ctx, payment.CheckoutRequestID)
	if err != nil {
		// Provider may still be processing the push; leave pending for the
		// next sweep.
		return err
	}

	switch result.ResultCode {
	case "0":
		return r.completeFromQuery(ctx, payment)
	case "":
		// No terminal result yet.
		return nil
	default:
		return r.failFromQuery(ctx, payment, result.ResultDesc)
	}
}

func (r *Reconciler) completeFromQuery(ctx context.Context, payment *models.Payment) error {
	// The status query carries no receipt number; the checkout request ID
	// stands in as the transaction reference, matching the callback
	// handler's fallback.
	rows, err := r.store.CompletePayment(ctx, payment.CheckoutRequestID, payment.CheckoutRequestID, time.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	util.ReconciledPaymentsTotal.WithLabelValues("completed").Inc()
	util.PaymentsCompletedTotal.Inc()
	r.logger.Info("Reconciled stale payment as completed",
		zap.String("checkout_request_id", payment.CheckoutRequestID))

	if err := r.cache.SetPaymentStatus(ctx, payment.CheckoutRequestID, models.PaymentStatusCompleted); err != nil {
		r.logger.Warn("failed to cache payment status", zap.Error(err))
	}

	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCompleted,
			Timestamp: time.Now(),
		},
		CheckoutRequestID: payment.CheckoutRequestID,
		TransactionID:     payment.CheckoutRequestID,
		Amount:            payment.Amount,
		TransactionDate:   time.Now(),
	}
	if err := r.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		r.logger.Error("failed to publish PaymentCompleted event", zap.Error(err))
	}

	return nil
}

func (r *Reconciler) failFromQuery(ctx context.Context, payment *models.Payment, reason string) error {
	if reason == "" {
		reason = "payment not completed at provider"
	}

	rows, err := r.store.FailPayment(ctx, payment.CheckoutRequestID, reason)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	util.ReconciledPaymentsTotal.WithLabelValues("failed").Inc()
	util.PaymentsFailedTotal.WithLabelValues("reconciled").Inc()
	r.logger.Info("Reconciled stale payment as failed",
		zap.String("checkout_request_id", payment.CheckoutRequestID),
		zap.String("reason", reason))

	if err := r.cache.SetPaymentStatus(ctx, payment.CheckoutRequestID, models.PaymentStatusFailed); err != nil {
		r.logger.Warn("failed to cache payment status", zap.Error(err))
	}

	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		CheckoutRequestID: payment.CheckoutRequestID,
		Reason:            reason,
	}
	if err := r.publisher.PublishPaymentFailed(ctx, event); err != nil {
		r.logger.Error("failed to publish PaymentFailed event", zap.Error(err))
	}

	return nil
}
