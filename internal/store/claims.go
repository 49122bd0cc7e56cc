package store

import (
	"context"
	"database/sql"

	"lostid-service/internal/models"
)

// CreateClaim inserts a new claim record.
// The (lost_id, user_id) unique constraint rejects duplicate claims even when
// two submissions race past the existence pre-check.
func (s *Store) CreateClaim(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (id, lost_id, user_id, category_id, name, email, phone, comments, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	return s.db.GetContext(ctx, &claim.CreatedAt, query,
		claim.ID, claim.LostID, claim.UserID, claim.CategoryID,
		claim.Name, claim.Email, claim.Phone, claim.Comments,
		claim.PaymentStatus, claim.Status)
}

// GetClaimByID retrieves a claim by ID
func (s *Store) GetClaimByID(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	err := s.db.GetContext(ctx, &claim, "SELECT * FROM claims WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// GetClaimByLostIDAndUser retrieves an existing claim for a (lost_id, user_id) pair
func (s *Store) GetClaimByLostIDAndUser(ctx context.Context, lostID, userID string) (*models.Claim, error) {
	var claim models.Claim
	err := s.db.GetContext(ctx, &claim,
		"SELECT * FROM claims WHERE lost_id = $1 AND user_id = $2", lostID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// GetClaimsByUserID retrieves claims for a user
func (s *Store) GetClaimsByUserID(ctx context.Context, userID string) ([]models.Claim, error) {
	var claims []models.Claim
	err := s.db.SelectContext(ctx, &claims,
		"SELECT * FROM claims WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return claims, err
}
