package service

import (
	"context"
	"fmt"
	"time"

	"lostid-service/internal/gateway"
	"lostid-service/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	payments   map[string]*models.Payment
	claims     map[string]*models.Claim
	lostIDs    map[string]*models.LostID
	categories map[string]*models.Category

	createPaymentErr error
	completeCalls    int
	failCalls        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:   make(map[string]*models.Payment),
		claims:     make(map[string]*models.Claim),
		lostIDs:    make(map[string]*models.LostID),
		categories: make(map[string]*models.Category),
	}
}

func claimKey(lostID, userID string) string {
	return lostID + "|" + userID
}

func (f *fakeStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if f.createPaymentErr != nil {
		return f.createPaymentErr
	}
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	f.payments[payment.CheckoutRequestID] = payment
	return nil
}

func (f *fakeStore) GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	return f.payments[checkoutRequestID], nil
}

func (f *fakeStore) CompletePayment(ctx context.Context, checkoutRequestID, transactionID string, transactionDate time.Time) (int64, error) {
	f.completeCalls++
	payment, ok := f.payments[checkoutRequestID]
	if !ok || payment.Status != models.PaymentStatusPending {
		return 0, nil
	}
	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID.String = transactionID
	payment.TransactionID.Valid = true
	payment.TransactionDate.Time = transactionDate
	payment.TransactionDate.Valid = true
	return 1, nil
}

func (f *fakeStore) FailPayment(ctx context.Context, checkoutRequestID, reason string) (int64, error) {
	f.failCalls++
	payment, ok := f.payments[checkoutRequestID]
	if !ok || payment.Status != models.PaymentStatusPending {
		return 0, nil
	}
	payment.Status = models.PaymentStatusFailed
	payment.FailureReason.String = reason
	payment.FailureReason.Valid = true
	return 1, nil
}

func (f *fakeStore) GetCompletedPayment(ctx context.Context, userID, categoryID string) (*models.Payment, error) {
	for _, payment := range f.payments {
		if payment.UserID == userID && payment.CategoryID == categoryID && payment.Status == models.PaymentStatusCompleted {
			return payment, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var stale []models.Payment
	for _, payment := range f.payments {
		if payment.Status == models.PaymentStatusPending && payment.CreatedAt.Before(cutoff) {
			stale = append(stale, *payment)
		}
	}
	return stale, nil
}

func (f *fakeStore) GetLostIDByID(ctx context.Context, id string) (*models.LostID, error) {
	lostID, ok := f.lostIDs[id]
	if !ok {
		return nil, fmt.Errorf("lost ID not found: %s", id)
	}
	return lostID, nil
}

func (f *fakeStore) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, fmt.Errorf("category not found: %s", id)
	}
	return category, nil
}

func (f *fakeStore) GetLostIDs(ctx context.Context) ([]models.LostID, error) {
	var lostIDs []models.LostID
	for _, lostID := range f.lostIDs {
		lostIDs = append(lostIDs, *lostID)
	}
	return lostIDs, nil
}

func (f *fakeStore) CreateLostID(ctx context.Context, lostID *models.LostID) error {
	lostID.CreatedAt = time.Now()
	f.lostIDs[lostID.ID] = lostID
	return nil
}

func (f *fakeStore) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	for _, category := range f.categories {
		categories = append(categories, *category)
	}
	return categories, nil
}

func (f *fakeStore) UpdateLostIDStatus(ctx context.Context, id, status string) error {
	if lostID, ok := f.lostIDs[id]; ok {
		lostID.Status = status
	}
	return nil
}

func (f *fakeStore) CreateClaim(ctx context.Context, claim *models.Claim) error {
	key := claimKey(claim.LostID, claim.UserID)
	if _, exists := f.claims[key]; exists {
		return &pq.Error{Code: "23505"}
	}
	claim.CreatedAt = time.Now()
	f.claims[key] = claim
	return nil
}

func (f *fakeStore) GetClaimByID(ctx context.Context, id string) (*models.Claim, error) {
	for _, claim := range f.claims {
		if claim.ID == id {
			return claim, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetClaimByLostIDAndUser(ctx context.Context, lostID, userID string) (*models.Claim, error) {
	return f.claims[claimKey(lostID, userID)], nil
}

func (f *fakeStore) GetClaimsByUserID(ctx context.Context, userID string) ([]models.Claim, error) {
	var claims []models.Claim
	for _, claim := range f.claims {
		if claim.UserID == userID {
			claims = append(claims, *claim)
		}
	}
	return claims, nil
}

func (f *fakeStore) addLostID(id, categoryID string) {
	f.lostIDs[id] = &models.LostID{
		ID:         id,
		IDNumber:   "12345678",
		OwnerName:  "Jane Wanjiku",
		CategoryID: categoryID,
		Status:     models.LostIDStatusUnclaimed,
	}
}

func (f *fakeStore) addCategory(id string, fee int64) {
	f.categories[id] = &models.Category{
		ID:          id,
		Name:        "National ID",
		RecoveryFee: decimal.NewFromInt(fee),
	}
}

func (f *fakeStore) addPendingPayment(checkoutRequestID, userID, lostID, categoryID string, amount int64) *models.Payment {
	payment := &models.Payment{
		ID:                "pay-" + checkoutRequestID,
		CheckoutRequestID: checkoutRequestID,
		UserID:            userID,
		LostID:            lostID,
		CategoryID:        categoryID,
		Phone:             "254712345678",
		Amount:            decimal.NewFromInt(amount),
		Status:            models.PaymentStatusPending,
		CreatedAt:         time.Now().Add(-time.Hour),
	}
	f.payments[checkoutRequestID] = payment
	return payment
}

type fakeGateway struct {
	pushResult  *gateway.STKPushResult
	pushErr     error
	queryResult *gateway.STKQueryResult
	queryErr    error
	pushCalls   int
	queryCalls  int
}

func (f *fakeGateway) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, accountRef string) (*gateway.STKPushResult, error) {
	f.pushCalls++
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return f.pushResult, nil
}

func (f *fakeGateway) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*gateway.STKQueryResult, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResult, nil
}

type fakeCache struct {
	statuses map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{statuses: make(map[string]string)}
}

func (f *fakeCache) GetPaymentStatus(ctx context.Context, checkoutRequestID string) (string, error) {
	return f.statuses[checkoutRequestID], nil
}

func (f *fakeCache) SetPaymentStatus(ctx context.Context, checkoutRequestID, status string) error {
	f.statuses[checkoutRequestID] = status
	return nil
}

func (f *fakeCache) InvalidatePaymentStatus(ctx context.Context, checkoutRequestID string) error {
	delete(f.statuses, checkoutRequestID)
	return nil
}

type fakePublisher struct {
	initiated []*models.PaymentInitiatedEvent
	completed []*models.PaymentCompletedEvent
	failed    []*models.PaymentFailedEvent
	claims    []*models.ClaimSubmittedEvent
}

func (f *fakePublisher) PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error {
	f.initiated = append(f.initiated, event)
	return nil
}

func (f *fakePublisher) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	f.completed = append(f.completed, event)
	return nil
}

func (f *fakePublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	f.failed = append(f.failed, event)
	return nil
}

func (f *fakePublisher) PublishClaimSubmitted(ctx context.Context, event *models.ClaimSubmittedEvent) error {
	f.claims = append(f.claims, event)
	return nil
}
