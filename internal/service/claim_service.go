package service

import (
	"context"
	"fmt"
	"time"

	"lostid-service/internal/errs"
	"lostid-service/internal/models"
	"lostid-service/internal/store"
	"lostid-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaimStore is the persistence surface the claim gate needs
type ClaimStore interface {
	CreateClaim(ctx context.Context, claim *models.Claim) error
	GetClaimByID(ctx context.Context, id string) (*models.Claim, error)
	GetClaimByLostIDAndUser(ctx context.Context, lostID, userID string) (*models.Claim, error)
	GetClaimsByUserID(ctx context.Context, userID string) ([]models.Claim, error)
	GetCompletedPayment(ctx context.Context, userID, categoryID string) (*models.Payment, error)
	UpdateLostIDStatus(ctx context.Context, id, status string) error
}

// ClaimEventPublisher publishes claim lifecycle events
type ClaimEventPublisher interface {
	PublishClaimSubmitted(ctx context.Context, event *models.ClaimSubmittedEvent) error
}

// ClaimService gates claim submission on confirmed payment
type ClaimService struct {
	store     ClaimStore
	publisher ClaimEventPublisher
	logger    *zap.Logger
}

// NewClaimService creates a new claim service
func NewClaimService(store ClaimStore, publisher ClaimEventPublisher) *ClaimService {
	return &ClaimService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SubmitClaimRequest is a request to claim a lost document
type SubmitClaimRequest struct {
	LostID     string `json:"lost_id" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
	CategoryID string `json:"category_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Comments   string `json:"comments,omitempty"`
}

// SubmitClaim creates a claim once a completed payment exists for the user
// and category. At most one claim per (lost_id, user_id) pair: a pre-check
// catches the common case and the unique constraint closes the race.
func (s *ClaimService) SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*models.Claim, error) {
	ctx, span := util.StartSpan(ctx, "ClaimService.SubmitClaim")
	defer span.End()

	if req.LostID == "" || req.UserID == "" || req.CategoryID == "" ||
		req.Name == "" || req.Email == "" || req.Phone == "" {
		util.ClaimsRejectedTotal.WithLabelValues("missing_fields").Inc()
		return nil, errs.Validation("lost_id, user_id, category_id, name, email and phone are required")
	}

	payment, err := s.store.GetCompletedPayment(ctx, req.UserID, req.CategoryID)
	if err != nil {
		return nil, errs.Persistence("failed to check payment").WithCause(err)
	}
	if payment == nil {
		util.ClaimsRejectedTotal.WithLabelValues("payment_not_confirmed").Inc()
		return nil, errs.PaymentNotConfirmed()
	}

	existing, err := s.store.GetClaimByLostIDAndUser(ctx, req.LostID, req.UserID)
	if err != nil {
		return nil, errs.Persistence("failed to check existing claim").WithCause(err)
	}
	if existing != nil {
		util.ClaimsRejectedTotal.WithLabelValues("duplicate").Inc()
		return nil, errs.DuplicateClaim()
	}

	claim := &models.Claim{
		ID:            uuid.New().String(),
		LostID:        req.LostID,
		UserID:        req.UserID,
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         NormalizePhone(req.Phone),
		Comments:      req.Comments,
		PaymentStatus: models.PaymentStatusCompleted,
		Status:        models.ClaimStatusPending,
	}

	if err := s.store.CreateClaim(ctx, claim); err != nil {
		if store.IsUniqueViolation(err) {
			util.ClaimsRejectedTotal.WithLabelValues("duplicate").Inc()
			return nil, errs.DuplicateClaim()
		}
		return nil, errs.Persistence("failed to save claim").WithCause(err)
	}

	util.ClaimsSubmittedTotal.Inc()
	s.logger.Info("Claim submitted",
		zap.String("claim_id", claim.ID),
		zap.String("lost_id", claim.LostID),
		zap.String("user_id", claim.UserID))

	if err := s.store.UpdateLostIDStatus(ctx, req.LostID, models.LostIDStatusClaimed); err != nil {
		s.logger.Error("failed to mark lost ID claimed",
			zap.String("lost_id", req.LostID),
			zap.Error(err))
	}

	event := &models.ClaimSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeClaimSubmitted,
			Timestamp: time.Now(),
		},
		ClaimID: claim.ID,
		LostID:  claim.LostID,
		UserID:  claim.UserID,
	}
	if err := s.publisher.PublishClaimSubmitted(ctx, event); err != nil {
		s.logger.Error("failed to publish ClaimSubmitted event", zap.Error(err))
	}

	return claim, nil
}

// ClaimsByUser lists a user's claims, newest first
func (s *ClaimService) ClaimsByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	if userID == "" {
		return nil, errs.Validation("user_id is required")
	}
	claims, err := s.store.GetClaimsByUserID(ctx, userID)
	if err != nil {
		return nil, errs.Persistence("failed to list claims").WithCause(err)
	}
	return claims, nil
}

// ClaimStatus reports the review status of a claim
func (s *ClaimService) ClaimStatus(ctx context.Context, claimID string) (*StatusResponse, error) {
	claim, err := s.store.GetClaimByID(ctx, claimID)
	if err != nil {
		return nil, errs.Persistence("failed to look up claim").WithCause(err)
	}
	if claim == nil {
		return nil, errs.NotFound("claim")
	}

	return &StatusResponse{
		Status:  claim.Status,
		Message: fmt.Sprintf("Claim status for ClaimID: %s", claimID),
	}, nil
}
