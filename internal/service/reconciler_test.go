package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lostid-service/internal/gateway"
	"lostid-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconcilerFixture(gw *fakeGateway) (*Reconciler, *fakeStore, *fakeCache, *fakePublisher) {
	store := newFakeStore()
	cache := newFakeCache()
	publisher := &fakePublisher{}
	return NewReconciler(store, gw, cache, publisher, time.Minute), store, cache, publisher
}

func TestSweepCompletesConfirmedPayment(t *testing.T) {
	gw := &fakeGateway{
		queryResult: &gateway.STKQueryResult{
			ResponseCode: "0",
			ResultCode:   "0",
			ResultDesc:   "The service request is processed successfully.",
		},
	}
	reconciler, store, cache, publisher := newReconcilerFixture(gw)
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	require.NoError(t, reconciler.Sweep(context.Background()))

	payment := store.payments["ws_1"]
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.PaymentStatusCompleted, cache.statuses["ws_1"])
	require.Len(t, publisher.completed, 1)
	assert.Equal(t, "ws_1", publisher.completed[0].CheckoutRequestID)
}

func TestSweepFailsCancelledPayment(t *testing.T) {
	gw := &fakeGateway{
		queryResult: &gateway.STKQueryResult{
			ResponseCode: "0",
			ResultCode:   "1032",
			ResultDesc:   "Request cancelled by user",
		},
	}
	reconciler, store, cache, publisher := newReconcilerFixture(gw)
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	require.NoError(t, reconciler.Sweep(context.Background()))

	payment := store.payments["ws_1"]
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.True(t, payment.FailureReason.Valid)
	assert.Equal(t, "Request cancelled by user", payment.FailureReason.String)
	assert.Equal(t, models.PaymentStatusFailed, cache.statuses["ws_1"])
	require.Len(t, publisher.failed, 1)
}

func TestSweepLeavesPendingOnQueryError(t *testing.T) {
	gw := &fakeGateway{queryErr: errors.New("connection refused")}
	reconciler, store, _, publisher := newReconcilerFixture(gw)
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	require.NoError(t, reconciler.Sweep(context.Background()))

	assert.Equal(t, models.PaymentStatusPending, store.payments["ws_1"].Status)
	assert.Empty(t, publisher.completed)
	assert.Empty(t, publisher.failed)
}

func TestSweepLeavesPendingWhenNoResultYet(t *testing.T) {
	gw := &fakeGateway{
		queryResult: &gateway.STKQueryResult{ResponseCode: "0"},
	}
	reconciler, store, _, publisher := newReconcilerFixture(gw)
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	require.NoError(t, reconciler.Sweep(context.Background()))

	assert.Equal(t, models.PaymentStatusPending, store.payments["ws_1"].Status)
	assert.Empty(t, publisher.completed)
	assert.Empty(t, publisher.failed)
}

func TestSweepSkipsFreshPendingPayments(t *testing.T) {
	gw := &fakeGateway{
		queryResult: &gateway.STKQueryResult{ResponseCode: "0", ResultCode: "0"},
	}
	reconciler, store, _, _ := newReconcilerFixture(gw)
	payment := store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)
	payment.CreatedAt = time.Now()

	require.NoError(t, reconciler.Sweep(context.Background()))

	assert.Zero(t, gw.queryCalls)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
}

func TestSweepIgnoresTerminalPayments(t *testing.T) {
	gw := &fakeGateway{
		queryResult: &gateway.STKQueryResult{ResponseCode: "0", ResultCode: "0"},
	}
	reconciler, store, _, _ := newReconcilerFixture(gw)
	payment := store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)
	payment.Status = models.PaymentStatusCompleted

	require.NoError(t, reconciler.Sweep(context.Background()))

	assert.Zero(t, gw.queryCalls)
}
