package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lostid-service/internal/errs"
	"lostid-service/internal/gateway"
	"lostid-service/internal/models"
	"lostid-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var phonePattern = regexp.MustCompile(`^254\d{9}$`)

// PaymentStore is the persistence surface the payment workflow needs
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	CompletePayment(ctx context.Context, checkoutRequestID, transactionID string, transactionDate time.Time) (int64, error)
	FailPayment(ctx context.Context, checkoutRequestID, reason string) (int64, error)
	GetCompletedPayment(ctx context.Context, userID, categoryID string) (*models.Payment, error)
	ListStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
	GetLostIDByID(ctx context.Context, id string) (*models.LostID, error)
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
}

// PaymentGateway initiates and queries STK push transactions
type PaymentGateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef string) (*gateway.STKPushResult, error)
	QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*gateway.STKQueryResult, error)
}

// StatusCache caches payment statuses keyed by checkout request ID
type StatusCache interface {
	GetPaymentStatus(ctx context.Context, checkoutRequestID string) (string, error)
	SetPaymentStatus(ctx context.Context, checkoutRequestID, status string) error
	InvalidatePaymentStatus(ctx context.Context, checkoutRequestID string) error
}

// PaymentEventPublisher publishes payment lifecycle events
type PaymentEventPublisher interface {
	PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentService handles the STK push payment workflow
type PaymentService struct {
	store     PaymentStore
	gateway   PaymentGateway
	cache     StatusCache
	publisher PaymentEventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, gw PaymentGateway, cache StatusCache, publisher PaymentEventPublisher) *PaymentService {
	return &PaymentService{
		store:     store,
		gateway:   gw,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// InitiatePaymentRequest is a request to start an STK push payment
type InitiatePaymentRequest struct {
	Phone  string          `json:"phone" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	LostID string          `json:"lost_id" binding:"required"`
	UserID string          `json:"user_id" binding:"required"`
}

// InitiatePaymentResponse acknowledges an initiated payment
type InitiatePaymentResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	Status            string `json:"status"`
	CustomerMessage   string `json:"customer_message,omitempty"`
}

// StatusResponse reports the state of a payment or claim
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NormalizePhone converts local Kenyan formats (07..., +254...) to the
// 254XXXXXXXXX form the provider requires.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = "254" + phone[1:]
	}
	return phone
}

// ValidatePhone checks the normalized provider phone format
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return errs.Validation("phone must be a 12-digit number starting with 254")
	}
	return nil
}

// Initiate validates the request, sends the STK push and records the pending
// payment. Exactly one pending record is written per provider acknowledgment;
// a gateway failure writes nothing so the caller may retry.
func (s *PaymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initiate")
	defer span.End()

	phone := NormalizePhone(req.Phone)
	if err := ValidatePhone(phone); err != nil {
		util.InitiationsRejectedTotal.WithLabelValues("invalid_phone").Inc()
		return nil, err
	}
	if !req.Amount.IsPositive() {
		util.InitiationsRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, errs.Validation("amount must be positive")
	}
	if req.LostID == "" || req.UserID == "" {
		util.InitiationsRejectedTotal.WithLabelValues("missing_fields").Inc()
		return nil, errs.Validation("lost_id and user_id are required")
	}

	lostID, err := s.store.GetLostIDByID(ctx, req.LostID)
	if err != nil {
		util.InitiationsRejectedTotal.WithLabelValues("lost_id_not_found").Inc()
		return nil, errs.NotFound("lost ID")
	}

	category, err := s.store.GetCategoryByID(ctx, lostID.CategoryID)
	if err != nil {
		return nil, errs.NotFound("category")
	}

	if !req.Amount.Equal(category.RecoveryFee) {
		util.InitiationsRejectedTotal.WithLabelValues("wrong_amount").Inc()
		return nil, errs.Validation(fmt.Sprintf("incorrect amount, the required recovery fee is KES %s", category.RecoveryFee.String()))
	}

	result, err := s.gateway.InitiateSTKPush(ctx, phone, req.Amount, req.LostID)
	if err != nil {
		s.logger.Error("STK push initiation failed",
			zap.String("lost_id", req.LostID),
			zap.Error(err))
		return nil, err
	}

	payment := &models.Payment{
		ID:                uuid.New().String(),
		CheckoutRequestID: result.CheckoutRequestID,
		UserID:            req.UserID,
		LostID:            req.LostID,
		CategoryID:        lostID.CategoryID,
		Phone:             phone,
		Amount:            req.Amount,
		Status:            models.PaymentStatusPending,
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		// The push already reached the provider; the reconciler will pick
		// up the orphan if the user is charged despite this failure.
		s.logger.Error("failed to persist payment record after provider acknowledgment",
			zap.String("checkout_request_id", result.CheckoutRequestID),
			zap.Error(err))
		return nil, errs.Persistence("failed to save payment record").WithCause(err)
	}

	util.PaymentsInitiatedTotal.Inc()
	s.logger.Info("Payment initiated",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("lost_id", req.LostID),
		zap.String("amount", req.Amount.String()))

	if err := s.cache.SetPaymentStatus(ctx, result.CheckoutRequestID, models.PaymentStatusPending); err != nil {
		s.logger.Warn("failed to cache payment status", zap.Error(err))
	}

	event := &models.PaymentInitiatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentInitiated,
			Timestamp: time.Now(),
		},
		CheckoutRequestID: result.CheckoutRequestID,
		UserID:            req.UserID,
		LostID:            req.LostID,
		Amount:            req.Amount,
		Phone:             phone,
	}
	if err := s.publisher.PublishPaymentInitiated(ctx, event); err != nil {
		s.logger.Error("failed to publish PaymentInitiated event", zap.Error(err))
	}

	return &InitiatePaymentResponse{
		CheckoutRequestID: result.CheckoutRequestID,
		Status:            models.PaymentStatusPending,
		CustomerMessage:   result.CustomerMessage,
	}, nil
}

// ProcessCallback applies the provider's asynchronous result to the matching
// payment record. Safe under duplicate and concurrent deliveries: terminal
// records are never rewritten because the transition runs as a conditional
// update guarded on status = pending.
func (s *PaymentService) ProcessCallback(ctx context.Context, cb *gateway.STKCallback) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessCallback")
	defer span.End()

	if cb.CheckoutRequestID == "" {
		util.CallbacksReceivedTotal.WithLabelValues("malformed").Inc()
		return errs.Validation("callback missing CheckoutRequestID")
	}

	payment, err := s.store.GetPaymentByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return errs.Persistence("failed to look up payment").WithCause(err)
	}
	if payment == nil {
		util.CallbacksReceivedTotal.WithLabelValues("unknown").Inc()
		return errs.NotFound("payment")
	}

	if cb.ResultCode != 0 {
		return s.handleFailureCallback(ctx, payment, cb)
	}
	return s.handleSuccessCallback(ctx, payment, cb)
}

func (s *PaymentService) handleFailureCallback(ctx context.Context, payment *models.Payment, cb *gateway.STKCallback) error {
	util.CallbacksReceivedTotal.WithLabelValues("failed").Inc()

	reason := cb.ResultDesc
	if reason == "" {
		reason = fmt.Sprintf("provider result code %d", cb.ResultCode)
	}

	rows, err := s.store.FailPayment(ctx, payment.CheckoutRequestID, reason)
	if err != nil {
		return errs.Persistence("failed to update payment").WithCause(err)
	}
	if rows == 0 {
		// Already terminal; a duplicate or late delivery. Drop any stale
		// cached status so the next poll reads the store.
		util.DuplicateCallbacksTotal.Inc()
		s.logger.Info("ignoring callback for payment already in terminal state",
			zap.String("checkout_request_id", payment.CheckoutRequestID),
			zap.String("status", payment.Status))
		s.invalidateStatus(ctx, payment.CheckoutRequestID)
		return nil
	}

	util.PaymentsFailedTotal.WithLabelValues("callback").Inc()
	s.logger.Warn("Payment failed",
		zap.String("checkout_request_id", payment.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("reason", reason))

	s.recordTerminalStatus(ctx, payment.CheckoutRequestID, models.PaymentStatusFailed)

	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		CheckoutRequestID: payment.CheckoutRequestID,
		Reason:            reason,
	}
	if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
		s.logger.Error("failed to publish PaymentFailed event", zap.Error(err))
	}

	return nil
}

func (s *PaymentService) handleSuccessCallback(ctx context.Context, payment *models.Payment, cb *gateway.STKCallback) error {
	if payment.Status == models.PaymentStatusCompleted {
		util.DuplicateCallbacksTotal.Inc()
		util.CallbacksReceivedTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	details, err := gateway.ExtractTransactionDetails(cb)
	if err != nil {
		util.CallbacksReceivedTotal.WithLabelValues("malformed").Inc()
		return errs.Validation(err.Error())
	}

	rows, err := s.store.CompletePayment(ctx, payment.CheckoutRequestID, details.ReceiptNumber, details.TransactionDate)
	if err != nil {
		return errs.Persistence("failed to update payment").WithCause(err)
	}
	if rows == 0 {
		// Lost the race against a concurrent delivery.
		util.DuplicateCallbacksTotal.Inc()
		util.CallbacksReceivedTotal.WithLabelValues("duplicate").Inc()
		s.invalidateStatus(ctx, payment.CheckoutRequestID)
		return nil
	}

	util.CallbacksReceivedTotal.WithLabelValues("completed").Inc()
	util.PaymentsCompletedTotal.Inc()
	s.logger.Info("Payment completed",
		zap.String("checkout_request_id", payment.CheckoutRequestID),
		zap.String("transaction_id", details.ReceiptNumber))

	s.recordTerminalStatus(ctx, payment.CheckoutRequestID, models.PaymentStatusCompleted)

	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCompleted,
			Timestamp: time.Now(),
		},
		CheckoutRequestID: payment.CheckoutRequestID,
		TransactionID:     details.ReceiptNumber,
		Amount:            payment.Amount,
		TransactionDate:   details.TransactionDate,
	}
	if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		s.logger.Error("failed to publish PaymentCompleted event", zap.Error(err))
	}

	return nil
}

func (s *PaymentService) invalidateStatus(ctx context.Context, checkoutRequestID string) {
	if err := s.cache.InvalidatePaymentStatus(ctx, checkoutRequestID); err != nil {
		s.logger.Warn("failed to invalidate cached payment status",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Error(err))
	}
}

func (s *PaymentService) recordTerminalStatus(ctx context.Context, checkoutRequestID, status string) {
	if err := s.cache.SetPaymentStatus(ctx, checkoutRequestID, status); err != nil {
		s.logger.Warn("failed to cache payment status",
			zap.String("checkout_request_id", checkoutRequestID),
			zap.Error(err))
	}
}

// PaymentStatus reports the status of a payment, serving from the cache
// when warm and falling through to the store.
func (s *PaymentService) PaymentStatus(ctx context.Context, checkoutRequestID string) (*StatusResponse, error) {
	if cached, err := s.cache.GetPaymentStatus(ctx, checkoutRequestID); err == nil && cached != "" {
		return &StatusResponse{
			Status:  cached,
			Message: fmt.Sprintf("Payment status for CheckoutRequestID: %s", checkoutRequestID),
		}, nil
	}

	payment, err := s.store.GetPaymentByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, errs.Persistence("failed to look up payment").WithCause(err)
	}
	if payment == nil {
		return nil, errs.NotFound("payment")
	}

	if err := s.cache.SetPaymentStatus(ctx, checkoutRequestID, payment.Status); err != nil {
		s.logger.Warn("failed to cache payment status", zap.Error(err))
	}

	return &StatusResponse{
		Status:  payment.Status,
		Message: fmt.Sprintf("Payment status for CheckoutRequestID: %s", checkoutRequestID),
	}, nil
}
