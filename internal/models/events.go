package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePaymentInitiated = "PAYMENT_INITIATED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
	EventTypeClaimSubmitted   = "CLAIM_SUBMITTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentInitiatedEvent published when an STK push is acknowledged
type PaymentInitiatedEvent struct {
	BaseEvent
	CheckoutRequestID string          `json:"checkout_request_id"`
	UserID            string          `json:"user_id"`
	LostID            string          `json:"lost_id"`
	Amount            decimal.Decimal `json:"amount"`
	Phone             string          `json:"phone"`
}

// PaymentCompletedEvent published when a callback confirms payment
type PaymentCompletedEvent struct {
	BaseEvent
	CheckoutRequestID string          `json:"checkout_request_id"`
	TransactionID     string          `json:"transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionDate   time.Time       `json:"transaction_date"`
}

// PaymentFailedEvent published when a callback reports failure
type PaymentFailedEvent struct {
	BaseEvent
	CheckoutRequestID string `json:"checkout_request_id"`
	Reason            string `json:"reason"`
}

// ClaimSubmittedEvent published when a claim passes the payment gate
type ClaimSubmittedEvent struct {
	BaseEvent
	ClaimID string `json:"claim_id"`
	LostID  string `json:"lost_id"`
	UserID  string `json:"user_id"`
}
