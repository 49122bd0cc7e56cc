package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Category represents an ID document category with its recovery fee
type Category struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	RecoveryFee decimal.Decimal `db:"recovery_fee" json:"recovery_fee"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// LostID represents a found identification document awaiting recovery
type LostID struct {
	ID            string    `db:"id" json:"id"`
	IDNumber      string    `db:"id_number" json:"id_number"`
	OwnerName     string    `db:"owner_name" json:"owner_name"`
	CategoryID    string    `db:"category_id" json:"category_id"`
	Status        string    `db:"status" json:"status"`
	DateFound     time.Time `db:"date_found" json:"date_found"`
	LocationFound string    `db:"location_found" json:"location_found"`
	ContactInfo   string    `db:"contact_info" json:"contact_info"`
	Comments      string    `db:"comments" json:"comments,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Payment represents an STK push payment attempt
type Payment struct {
	ID                string          `db:"id" json:"id"`
	CheckoutRequestID string          `db:"checkout_request_id" json:"checkout_request_id"`
	UserID            string          `db:"user_id" json:"user_id"`
	LostID            string          `db:"lost_id" json:"lost_id"`
	CategoryID        string          `db:"category_id" json:"category_id"`
	Phone             string          `db:"phone" json:"phone"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            string          `db:"status" json:"status"`
	TransactionID     sql.NullString  `db:"transaction_id" json:"transaction_id,omitempty"`
	TransactionDate   sql.NullTime    `db:"transaction_date" json:"transaction_date,omitempty"`
	FailureReason     sql.NullString  `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Claim represents a recovery claim on a lost document
type Claim struct {
	ID            string    `db:"id" json:"id"`
	LostID        string    `db:"lost_id" json:"lost_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	CategoryID    string    `db:"category_id" json:"category_id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	Phone         string    `db:"phone" json:"phone"`
	Comments      string    `db:"comments" json:"comments,omitempty"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Claim review statuses
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

// Lost ID statuses
const (
	LostIDStatusUnclaimed = "unclaimed"
	LostIDStatusClaimed   = "claimed"
	LostIDStatusReturned  = "returned"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
