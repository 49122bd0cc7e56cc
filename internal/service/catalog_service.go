package service

import (
	"context"
	"time"

	"lostid-service/internal/errs"
	"lostid-service/internal/models"
	"lostid-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogStore is the persistence surface for lost IDs and categories
type CatalogStore interface {
	GetLostIDs(ctx context.Context) ([]models.LostID, error)
	GetLostIDByID(ctx context.Context, id string) (*models.LostID, error)
	CreateLostID(ctx context.Context, lostID *models.LostID) error
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
}

// CatalogService serves the lost-ID and category records the payment
// workflow depends on
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// UploadLostIDRequest registers a found document
type UploadLostIDRequest struct {
	IDNumber      string `json:"id_number" binding:"required"`
	OwnerName     string `json:"owner_name" binding:"required"`
	CategoryID    string `json:"category_id" binding:"required"`
	DateFound     string `json:"date_found" binding:"required"`
	LocationFound string `json:"location_found" binding:"required"`
	ContactInfo   string `json:"contact_info" binding:"required"`
	Comments      string `json:"comments,omitempty"`
}

// ListLostIDs retrieves all lost ID records
func (s *CatalogService) ListLostIDs(ctx context.Context) ([]models.LostID, error) {
	return s.store.GetLostIDs(ctx)
}

// GetLostID retrieves a lost ID record
func (s *CatalogService) GetLostID(ctx context.Context, id string) (*models.LostID, error) {
	lostID, err := s.store.GetLostIDByID(ctx, id)
	if err != nil {
		return nil, errs.NotFound("lost ID")
	}
	return lostID, nil
}

// UploadLostID registers a found document under an existing category
func (s *CatalogService) UploadLostID(ctx context.Context, req *UploadLostIDRequest) (*models.LostID, error) {
	if _, err := s.store.GetCategoryByID(ctx, req.CategoryID); err != nil {
		return nil, errs.Validation("invalid category_id")
	}

	dateFound, err := time.Parse("2006-01-02", req.DateFound)
	if err != nil {
		return nil, errs.Validation("date_found must be YYYY-MM-DD")
	}

	lostID := &models.LostID{
		ID:            uuid.New().String(),
		IDNumber:      req.IDNumber,
		OwnerName:     req.OwnerName,
		CategoryID:    req.CategoryID,
		Status:        models.LostIDStatusUnclaimed,
		DateFound:     dateFound,
		LocationFound: req.LocationFound,
		ContactInfo:   req.ContactInfo,
		Comments:      req.Comments,
	}

	if err := s.store.CreateLostID(ctx, lostID); err != nil {
		return nil, errs.Persistence("failed to save lost ID").WithCause(err)
	}

	s.logger.Info("Lost ID uploaded",
		zap.String("id", lostID.ID),
		zap.String("category_id", lostID.CategoryID))

	return lostID, nil
}

// ListCategories retrieves all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.GetCategories(ctx)
}
