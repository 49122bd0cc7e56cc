package service

import (
	"context"
	"testing"

	"lostid-service/internal/errs"
	"lostid-service/internal/gateway"
	"lostid-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"254712345678":  "254712345678",
		"+254712345678": "254712345678",
		"0712345678":    "254712345678",
		" 0712345678 ":  "254712345678",
		"0112345678":    "254112345678",
	}

	for input, want := range cases {
		assert.Equal(t, want, NormalizePhone(input), "input %q", input)
	}
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, ValidatePhone("254712345678"))

	for _, bad := range []string{"", "0712345678", "25471234567", "2547123456789", "254abc345678"} {
		assert.Error(t, ValidatePhone(bad), "input %q", bad)
	}
}

func newPaymentFixture() (*PaymentService, *fakeStore, *fakeGateway, *fakeCache, *fakePublisher) {
	store := newFakeStore()
	store.addCategory("cat-1", 300)
	store.addLostID("L1", "cat-1")

	gw := &fakeGateway{
		pushResult: &gateway.STKPushResult{
			MerchantRequestID:   "29115-34620561-1",
			CheckoutRequestID:   "ws_1",
			ResponseCode:        "0",
			ResponseDescription: "Success",
			CustomerMessage:     "Success. Request accepted for processing",
		},
	}
	cache := newFakeCache()
	publisher := &fakePublisher{}

	return NewPaymentService(store, gw, cache, publisher), store, gw, cache, publisher
}

func TestInitiateCreatesPendingPayment(t *testing.T) {
	svc, store, _, cache, publisher := newPaymentFixture()

	resp, err := svc.Initiate(context.Background(), &InitiatePaymentRequest{
		Phone:  "0712345678",
		Amount: decimal.NewFromInt(300),
		LostID: "L1",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ws_1", resp.CheckoutRequestID)
	assert.Equal(t, models.PaymentStatusPending, resp.Status)

	payment := store.payments["ws_1"]
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "254712345678", payment.Phone)
	assert.Equal(t, "user-1", payment.UserID)
	assert.Equal(t, "cat-1", payment.CategoryID)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, models.PaymentStatusPending, cache.statuses["ws_1"])
	require.Len(t, publisher.initiated, 1)
	assert.Equal(t, "ws_1", publisher.initiated[0].CheckoutRequestID)
}

func TestInitiateGatewayFailureWritesNothing(t *testing.T) {
	svc, store, gw, _, publisher := newPaymentFixture()
	gw.pushResult = nil
	gw.pushErr = errs.GatewayRequest("provider unavailable")

	_, err := svc.Initiate(context.Background(), &InitiatePaymentRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(300),
		LostID: "L1",
		UserID: "user-1",
	})
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "GATEWAY_REQUEST_ERROR", appErr.Code)

	assert.Empty(t, store.payments)
	assert.Empty(t, publisher.initiated)
}

func TestInitiateRejectsWrongAmount(t *testing.T) {
	svc, store, gw, _, _ := newPaymentFixture()

	_, err := svc.Initiate(context.Background(), &InitiatePaymentRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(250),
		LostID: "L1",
		UserID: "user-1",
	})
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "KES 300")

	assert.Zero(t, gw.pushCalls)
	assert.Empty(t, store.payments)
}

func TestInitiateRejectsInvalidPhone(t *testing.T) {
	svc, _, gw, _, _ := newPaymentFixture()

	_, err := svc.Initiate(context.Background(), &InitiatePaymentRequest{
		Phone:  "12345",
		Amount: decimal.NewFromInt(300),
		LostID: "L1",
		UserID: "user-1",
	})
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Zero(t, gw.pushCalls)
}

func TestInitiateUnknownLostID(t *testing.T) {
	svc, _, gw, _, _ := newPaymentFixture()

	_, err := svc.Initiate(context.Background(), &InitiatePaymentRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(300),
		LostID: "no-such-id",
		UserID: "user-1",
	})
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "RECORD_NOT_FOUND", appErr.Code)
	assert.Zero(t, gw.pushCalls)
}

func successCallback(checkoutRequestID string) *gateway.STKCallback {
	return &gateway.STKCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &gateway.CallbackMetadata{
			Item: []gateway.MetadataItem{
				{Name: "Amount", Value: float64(300)},
				{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
				{Name: "TransactionDate", Value: float64(20250115103000)},
				{Name: "PhoneNumber", Value: float64(254712345678)},
			},
		},
	}
}

func TestProcessCallbackSuccess(t *testing.T) {
	svc, store, _, cache, publisher := newPaymentFixture()
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	err := svc.ProcessCallback(context.Background(), successCallback("ws_1"))
	require.NoError(t, err)

	payment := store.payments["ws_1"]
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.True(t, payment.TransactionID.Valid)
	assert.Equal(t, "NLJ7RT61SV", payment.TransactionID.String)
	require.True(t, payment.TransactionDate.Valid)
	assert.Equal(t, 2025, payment.TransactionDate.Time.Year())

	assert.Equal(t, models.PaymentStatusCompleted, cache.statuses["ws_1"])
	require.Len(t, publisher.completed, 1)
	assert.Equal(t, "NLJ7RT61SV", publisher.completed[0].TransactionID)
}

func TestProcessCallbackDuplicateSuccessIsNoOp(t *testing.T) {
	svc, store, _, _, publisher := newPaymentFixture()
	payment := store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)
	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID.String = "NLJ7RT61SV"
	payment.TransactionID.Valid = true

	err := svc.ProcessCallback(context.Background(), successCallback("ws_1"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "NLJ7RT61SV", payment.TransactionID.String)
	assert.Zero(t, store.completeCalls)
	assert.Empty(t, publisher.completed)
}

func TestProcessCallbackFailure(t *testing.T) {
	svc, store, _, cache, publisher := newPaymentFixture()
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	err := svc.ProcessCallback(context.Background(), &gateway.STKCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	})
	require.NoError(t, err)

	payment := store.payments["ws_1"]
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.True(t, payment.FailureReason.Valid)
	assert.Equal(t, "Request cancelled by user", payment.FailureReason.String)

	assert.Equal(t, models.PaymentStatusFailed, cache.statuses["ws_1"])
	require.Len(t, publisher.failed, 1)
	assert.Equal(t, "Request cancelled by user", publisher.failed[0].Reason)
}

func TestProcessCallbackFailureWithoutDescription(t *testing.T) {
	svc, store, _, _, _ := newPaymentFixture()
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	err := svc.ProcessCallback(context.Background(), &gateway.STKCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        2001,
	})
	require.NoError(t, err)

	payment := store.payments["ws_1"]
	require.True(t, payment.FailureReason.Valid)
	assert.NotEmpty(t, payment.FailureReason.String)
}

func TestProcessCallbackFailureAfterTerminalIsNoOp(t *testing.T) {
	svc, store, _, cache, publisher := newPaymentFixture()
	payment := store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)
	payment.Status = models.PaymentStatusCompleted
	cache.statuses["ws_1"] = models.PaymentStatusPending // stale

	err := svc.ProcessCallback(context.Background(), &gateway.STKCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Empty(t, publisher.failed)

	// The stale cache entry is dropped so the next poll hits the store.
	assert.Empty(t, cache.statuses["ws_1"])
}

func TestProcessCallbackUnknownCheckoutID(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	err := svc.ProcessCallback(context.Background(), successCallback("ws_unknown"))
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "RECORD_NOT_FOUND", appErr.Code)
}

func TestProcessCallbackMissingCheckoutID(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	err := svc.ProcessCallback(context.Background(), &gateway.STKCallback{ResultCode: 0})
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestProcessCallbackSuccessWithoutReceiptLeavesPending(t *testing.T) {
	svc, store, _, _, publisher := newPaymentFixture()
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	err := svc.ProcessCallback(context.Background(), &gateway.STKCallback{
		CheckoutRequestID: "ws_1",
		ResultCode:        0,
	})
	require.Error(t, err)

	assert.Equal(t, models.PaymentStatusPending, store.payments["ws_1"].Status)
	assert.Empty(t, publisher.completed)
}

func TestPaymentStatusServesFromCache(t *testing.T) {
	svc, _, _, cache, _ := newPaymentFixture()
	cache.statuses["ws_1"] = models.PaymentStatusCompleted

	resp, err := svc.PaymentStatus(context.Background(), "ws_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, resp.Status)
}

func TestPaymentStatusFallsThroughToStore(t *testing.T) {
	svc, store, _, cache, _ := newPaymentFixture()
	store.addPendingPayment("ws_1", "user-1", "L1", "cat-1", 300)

	resp, err := svc.PaymentStatus(context.Background(), "ws_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, resp.Status)

	// Re-cached for the next poll.
	assert.Equal(t, models.PaymentStatusPending, cache.statuses["ws_1"])
}

func TestPaymentStatusUnknown(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	_, err := svc.PaymentStatus(context.Background(), "ws_unknown")
	require.Error(t, err)

	appErr, ok := errs.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "RECORD_NOT_FOUND", appErr.Code)
}
