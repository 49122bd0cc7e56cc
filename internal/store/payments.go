package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lostid-service/internal/models"
)

// CreatePayment inserts a new pending payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, checkout_request_id, user_id, lost_id, category_id, phone, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		payment.ID, payment.CheckoutRequestID, payment.UserID, payment.LostID,
		payment.CategoryID, payment.Phone, payment.Amount, payment.Status)
	return row.Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByCheckoutID retrieves a payment by provider checkout request ID
func (s *Store) GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE checkout_request_id = $1", checkoutRequestID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompletePayment transitions a pending payment to completed.
// The WHERE status = 'pending' guard makes concurrent callback deliveries safe:
// only one delivery observes rows affected = 1.
func (s *Store) CompletePayment(ctx context.Context, checkoutRequestID, transactionID string, transactionDate time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, transaction_id = $2, transaction_date = $3, updated_at = NOW()
		WHERE checkout_request_id = $4 AND status = $5`,
		models.PaymentStatusCompleted, transactionID, transactionDate,
		checkoutRequestID, models.PaymentStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to complete payment: %w", err)
	}
	return result.RowsAffected()
}

// FailPayment transitions a pending payment to failed with the provider's reason
func (s *Store) FailPayment(ctx context.Context, checkoutRequestID, reason string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE checkout_request_id = $3 AND status = $4`,
		models.PaymentStatusFailed, reason,
		checkoutRequestID, models.PaymentStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to fail payment: %w", err)
	}
	return result.RowsAffected()
}

// GetCompletedPayment retrieves a completed payment for a user and category
func (s *Store) GetCompletedPayment(ctx context.Context, userID, categoryID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE user_id = $1 AND category_id = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`,
		userID, categoryID, models.PaymentStatusCompleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListStalePendingPayments retrieves pending payments created before the cutoff
func (s *Store) ListStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3`,
		models.PaymentStatusPending, cutoff, limit)
	return payments, err
}
